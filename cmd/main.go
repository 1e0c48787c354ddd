package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	myapp "github.com/ayxworxfr/go_backoffice/internal/app"
	"github.com/ayxworxfr/go_backoffice/internal/config"
	"github.com/ayxworxfr/go_backoffice/internal/cron"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/ayxworxfr/go_backoffice/pkg/utils"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := InitConfig()
	InitLogger(cfg.Logger)

	// 先初始化 OpenTelemetry，服务端 tracer 创建时会读取全局 provider
	otelProvider := initOpenTelemetry(ctx, cfg.OpenTelemetry)

	app := myapp.NewApp(cfg)
	services, err := myapp.NewServices(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize services: %v", err))
	}

	// 退出时倒序执行：先停任务，再关会话存储，最后刷新 trace
	app.RegisterExit(func() error {
		return otelProvider.Shutdown(context.Background())
	})
	app.RegisterExit(services.Close)
	app.RegisterExit(func() error {
		cancel()
		return nil
	})
	app.RegisterInit(func() error {
		return errors.Wrap(initCron(app, cfg, services), "Failed to initialize cron tasks")
	})

	// 添加中间件
	app.SetupMiddlewares(ctx, services)

	// 注册路由
	app.SetupRoutes(myapp.NewHandlers(services, services.Base(cfg)))

	// 启动服务器
	go startServer(app)

	// 优雅关闭
	gracefulShutdown(app)
}

func initOpenTelemetry(ctx context.Context, cfg config.OpenTelemetryConfig) myapp.Shutdownable {
	provider, err := myapp.InitOpenTelemetry(ctx, cfg)
	if err != nil {
		// 追踪不可用不影响控制台本身
		logger.Error(ctx, "Failed to initialize OpenTelemetry", zap.Error(err))
		cfg.Enable = false
		provider, _ = myapp.InitOpenTelemetry(ctx, cfg)
	}
	return provider
}

func initCron(app *myapp.App, cfg *config.Config, services *myapp.Services) error {
	deps := cron.Deps{
		Health:  services.Health,
		Store:   services.Store,
		Loaders: services.Tables,
		Auth:    services.Auth,
		Idle:    cfg.Table.IdleDuration(),
	}
	if services.Limiter != nil {
		deps.Limiter = services.Limiter
	}
	taskManager, err := cron.InitCronTask(cfg.Tasks, deps)
	if err != nil {
		return err
	}
	app.RegisterExit(func() error {
		taskManager.Stop()
		return nil
	})
	return nil
}

func InitConfig() *config.Config {
	// 加载配置
	configPath := utils.GetAbsPath("conf/config.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return cfg
}

func InitLogger(cfg config.LoggerConfig) {
	logger.InitLogger(logger.Config{
		LogFile:    cfg.LogFile,
		Level:      cfg.Level,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		Console:    cfg.Console,
	})
}

func startServer(app *myapp.App) {
	if err := app.Run(); err != nil {
		panic(fmt.Sprintf("Failed to start server: %v", err))
	}
}

func gracefulShutdown(app *myapp.App) {
	// 创建一个通道来接收操作系统的信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 阻塞，直到接收到退出信号
	<-quit
	logger.Info(context.Background(), "Shutting down server...")

	const shutdownTimeout = 5 * time.Second
	if err := app.GracefulShutdown(shutdownTimeout); err != nil {
		logger.Error(context.Background(), "Shutdown finished with errors", zap.Error(err))
	}

	logger.Info(context.Background(), "Server exiting")
}

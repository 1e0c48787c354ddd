// internal/app/app.go

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/app/router"
	"github.com/ayxworxfr/go_backoffice/internal/config"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hashicorp/go-multierror"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.uber.org/zap"
)

type App struct {
	server    *server.Hertz
	config    *config.Config
	initFuncs []func() error
	exitFuncs []func() error
}

func NewApp(cfg *config.Config) *App {
	tracer, tcfg := hertztracing.NewServerTracer()
	h := server.Default(tracer,
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.Port)),
		server.WithMaxRequestBodySize(maxUploadSize),
	)
	h.Use(hertztracing.ServerMiddleware(tcfg))
	return &App{
		server: h,
		config: cfg,
	}
}

// maxUploadSize 表单中可能带有 logo、头像等文件
const maxUploadSize = 32 << 20

func (a *App) Run() error {
	ctx := context.Background()
	logger.Info(ctx, "Starting application...")
	if err := a.executeFuns(a.initFuncs...); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	logger.Info(ctx, "Starting server", zap.Int("port", a.config.Server.Port))
	return a.server.Run()
}

// GracefulShutdown 先停止接收请求，再按注册的倒序释放资源
func (a *App) GracefulShutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var result *multierror.Error
	if err := a.server.Shutdown(ctx); err != nil {
		logger.Error(ctx, "Server forced to shutdown", zap.Error(err))
		result = multierror.Append(result, err)
	}
	for i := len(a.exitFuncs) - 1; i >= 0; i-- {
		if err := a.exitFuncs[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (a *App) Group(path string) *router.RouterGroup {
	return router.NewRouterGroup(a.server.Group(path))
}

func (a *App) RegisterInit(initFuncs ...func() error) {
	a.initFuncs = append(a.initFuncs, initFuncs...)
}

func (a *App) RegisterExit(exitFuncs ...func() error) {
	a.exitFuncs = append(a.exitFuncs, exitFuncs...)
}

func (a *App) executeFuns(funs ...func() error) error {
	for _, fun := range funs {
		if err := fun(); err != nil {
			return err
		}
	}
	return nil
}

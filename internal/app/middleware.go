package app

import (
	"context"

	"github.com/ayxworxfr/go_backoffice/internal/middleware"
	"github.com/ayxworxfr/go_backoffice/internal/middleware/sentinel"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/ayxworxfr/go_backoffice/pkg/utils"
	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"
)

// MiddlewareFunc 定义了中间件函数的签名，与 Hertz 的 HandlerFunc 格式一致
type MiddlewareFunc = app.HandlerFunc

// Use 方法用于添加中间件
func (a *App) Use(middlewares ...MiddlewareFunc) {
	for _, m := range middlewares {
		a.server.Use(m)
	}
}

// SetupMiddlewares 注册全局中间件，按 IP 限流先于 sentinel；会话中间件排在最后，之后的处理函数都能拿到认证状态。
// 这些中间件必须挂在 engine 上，c.Next 才能把 ctx 传给后续处理函数
func (a *App) SetupMiddlewares(ctx context.Context, s *Services) {
	a.Use(middleware.GlobalErrorHandlerMiddleware(s.Views))
	a.Use(middleware.TraceContextMiddleware())
	a.Use(middleware.NewLogger(middleware.LoggerConfig{
		SkipPaths: []string{a.config.Metrics.Path, "/health"},
	}).Logger())
	a.Use(middleware.CorsMiddleware(a.config.Server.CorsOrigins))
	if s.Limiter != nil {
		a.Use(s.Limiter.Middleware())
	}

	if file := a.config.Server.SentinelFile; file != "" {
		guard, err := sentinel.New(ctx, utils.GetAbsPath(file), logger.FromContext(ctx))
		if err != nil {
			logger.Error(ctx, "Sentinel disabled", zap.String("file", file), zap.Error(err))
		} else {
			a.Use(guard.Middleware())
		}
	}

	a.Use(middleware.SessionMiddleware(s.Cookie, s.Auth))
}

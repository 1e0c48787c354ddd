package middleware

import (
	"context"
	"runtime/debug"

	"github.com/ayxworxfr/go_backoffice/internal/views"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"
)

// GlobalErrorHandlerMiddleware 捕获 panic：JSON 请求返回统一错误信封，页面请求渲染错误页
func GlobalErrorHandlerMiddleware(renderer *views.Renderer) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(ctx, "Panic occurred",
					zap.Any("error", err),
					zap.String("url", string(c.Request.URI().FullURI())),
					zap.String("method", string(c.Request.Method())),
					zap.String("stack", string(debug.Stack())),
				)

				c.Response.Reset()
				myCtx := mycontext.NewContext(ctx, c)
				if myCtx.WantsJSON() || renderer == nil {
					c.JSON(consts.StatusInternalServerError, mycontext.InternalError())
				} else if body, rerr := renderer.Page(views.PageError, &views.PageData{Title: "Error"}); rerr == nil {
					c.Data(consts.StatusInternalServerError, "text/html; charset=utf-8", body)
				} else {
					c.String(consts.StatusInternalServerError, "Internal Server Error")
				}
				c.Abort()
			}
		}()

		c.Next(ctx)
	}
}

package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/samber/lo"
)

// CorsMiddleware 跨域中间件；origins 为空时不输出任何跨域头，包含 * 时允许所有源
func CorsMiddleware(origins []string) app.HandlerFunc {
	allowAll := lo.Contains(origins, "*")
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.Request.Header.Peek("Origin"))
		if origin == "" || !(allowAll || lo.Contains(origins, origin)) {
			c.Next(ctx)
			return
		}

		// 携带 cookie 时不能使用 *，回显请求的源
		c.Response.Header.Set("Access-Control-Allow-Origin", origin)
		c.Response.Header.Set("Vary", "Origin")
		c.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Accept, X-Requested-With, X-Request-ID")
		c.Response.Header.Set("Access-Control-Allow-Credentials", "true")
		c.Response.Header.Set("Access-Control-Max-Age", "86400")

		if string(c.Request.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}
		c.Next(ctx)
	}
}

package middleware

import (
	"context"
	"net/url"

	"github.com/ayxworxfr/go_backoffice/internal/gate"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/internal/session"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"
)

// Resolver 根据会话ID得到认证状态
type Resolver interface {
	Resolve(ctx context.Context, sid string) service.State
}

// SessionMiddleware 确保每个请求都有会话，并把会话ID与认证状态写入请求上下文
func SessionMiddleware(cookie *session.Cookie, auth Resolver) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		myCtx := mycontext.NewContext(ctx, c)
		sid, issued, err := cookie.Ensure(myCtx)
		if err != nil {
			logger.Error(ctx, "Issue session failed", zap.Error(err))
			c.String(consts.StatusInternalServerError, "Internal Server Error")
			c.Abort()
			return
		}
		c.Set(mycontext.SessionIDKey, sid)

		// 新会话不可能已登录
		var state service.State
		if !issued {
			state = auth.Resolve(ctx, sid)
		}
		c.Set(mycontext.AuthStateKey, state)
		if state.IsAuthenticated() {
			ctx = logger.WithContext(ctx, zap.String("user_id", state.User.ID))
		}
		c.Next(ctx)
	}
}

// RequireLogin 匿名用户访问受保护页面时跳转登录页，登录后回到原页面；校验中的状态交给 gate 处理
func RequireLogin() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		state := gate.StateFrom(c)
		if state.Loading || state.IsAuthenticated() {
			c.Next(ctx)
			return
		}
		myCtx := mycontext.NewContext(ctx, c)
		if myCtx.WantsJSON() {
			mycontext.Unauthorized("login required").Write(myCtx)
		} else {
			c.Redirect(consts.StatusFound, []byte("/login?next="+url.QueryEscape(myCtx.RequestURI())))
		}
		c.Abort()
	}
}

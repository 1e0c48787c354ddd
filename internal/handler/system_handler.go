package handler

import (
	"context"

	"github.com/ayxworxfr/go_backoffice/internal/domain/params"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/internal/views"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// themeMaxAge 深色模式偏好保存一年
const themeMaxAge = 365 * 24 * 3600

// ISystemHandler 首页、健康检查、错误页与主题切换
type ISystemHandler interface {
	Home(c *mycontext.Context) *mycontext.Response
	Health(c *mycontext.Context) *mycontext.Response
	Unauthorized(c *mycontext.Context) *mycontext.Response
	NotFound(c *mycontext.Context) *mycontext.Response
	Theme(c *mycontext.Context, req *params.ThemeRequest) *mycontext.Response
}

type SystemHandler struct {
	*Base
	health *service.HealthService
}

var _ ISystemHandler = (*SystemHandler)(nil)

func NewSystemHandler(base *Base, health *service.HealthService) *SystemHandler {
	return &SystemHandler{Base: base, health: health}
}

// @route Get /
func (h *SystemHandler) Home(c *mycontext.Context) *mycontext.Response {
	return h.page(c, consts.StatusOK, views.PageHome, "Dashboard", nil)
}

// @route Get /health
func (h *SystemHandler) Health(c *mycontext.Context) *mycontext.Response {
	data := map[string]any{"status": "ok"}
	if h.health == nil {
		return mycontext.Success(data)
	}
	last := h.health.Last()
	data["backend"] = last
	if last != nil && !last.Healthy {
		return mycontext.ServiceUnavailable("backend: " + last.Error)
	}
	return mycontext.Success(data)
}

// @route Get /unauthorized
func (h *SystemHandler) Unauthorized(c *mycontext.Context) *mycontext.Response {
	return h.page(c, consts.StatusForbidden, views.PageUnauthorized, "Unauthorized", nil)
}

// NotFound 未匹配任何路由
func (h *SystemHandler) NotFound(c *mycontext.Context) *mycontext.Response {
	if c.WantsJSON() {
		return mycontext.NotFound(c.Path())
	}
	return h.page(c, consts.StatusNotFound, views.PageNotFound, "Not found", nil)
}

// @route Post /theme
func (h *SystemHandler) Theme(c *mycontext.Context, req *params.ThemeRequest) *mycontext.Response {
	next := "dark"
	if c.Cookie(ThemeCookie) == "dark" {
		next = "light"
	}
	c.SetCookie(ThemeCookie, next, themeMaxAge, "/", false, false)
	return mycontext.Redirect(safeRedirect(req.Redirect, "/"))
}

// Loading 认证状态未确定时由 gate 渲染的占位页，一秒后自动刷新
func (h *SystemHandler) Loading(ctx context.Context, c *app.RequestContext) {
	myCtx := mycontext.NewContext(ctx, c)
	if myCtx.WantsJSON() {
		mycontext.ServiceUnavailable("session is being validated").Write(myCtx)
		return
	}
	h.page(myCtx, consts.StatusOK, views.PageLoading, "Loading", nil).Write(myCtx)
}

// Package handler 控制台的页面处理函数：认证页、通用 CRUD 资源页与系统页。
package handler

import (
	"context"
	"net/url"
	"strings"

	"github.com/ayxworxfr/go_backoffice/internal/backend"
	"github.com/ayxworxfr/go_backoffice/internal/config"
	"github.com/ayxworxfr/go_backoffice/internal/gate"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/internal/session"
	"github.com/ayxworxfr/go_backoffice/internal/table"
	"github.com/ayxworxfr/go_backoffice/internal/views"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/httpclient"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"
)

const (
	// ThemeCookie 深色模式偏好
	ThemeCookie = "bo_theme"
	// FlashCookie 重定向后显示一次的提示
	FlashCookie = "bo_flash"

	LoginPath = "/login"
)

// Authenticator 认证服务中处理函数用到的部分
type Authenticator interface {
	Login(ctx context.Context, sid, email, password string) (service.Result, error)
	Register(ctx context.Context, sid string, req backend.RegisterRequest) (service.Result, error)
	Logout(ctx context.Context, sid string)
	Invalidate(ctx context.Context, sid string)
	Token(ctx context.Context, sid string) (string, error)
}

// ResourceBackend 资源页用到的后端接口
type ResourceBackend interface {
	List(ctx context.Context, token, endpoint string, q backend.ListQuery) (*backend.ListResult, error)
	Get(ctx context.Context, token, endpoint, id string) (backend.Record, error)
	Create(ctx context.Context, token, endpoint string, body backend.Record, files []httpclient.FilePart) (backend.Record, error)
	Update(ctx context.Context, token, endpoint, id string, body backend.Record, files []httpclient.FilePart) (backend.Record, error)
	Delete(ctx context.Context, token, endpoint, id string) error
	Trash(ctx context.Context, token, endpoint, id string) error
	Restore(ctx context.Context, token, endpoint, id string) error
	Options(ctx context.Context, token, endpoint, valueKey, labelKey string) ([]backend.Option, error)
}

// Base 各处理器共享的依赖与页面辅助函数
type Base struct {
	Auth      Authenticator
	Backend   ResourceBackend
	Cookie    *session.Cookie
	Tables    *table.Registry
	Views     *views.Renderer
	Table     config.TableConfig
	Resources []*Resource
}

func (b *Base) state(c *mycontext.Context) service.State {
	return gate.StateFrom(c.RequestContext)
}

// page 套用布局渲染整页
func (b *Base) page(c *mycontext.Context, status int, name, title string, content any) *mycontext.Response {
	state := b.state(c)
	data := &views.PageData{
		Title:       title,
		User:        state.User,
		Dark:        c.Cookie(ThemeCookie) == "dark",
		Flash:       takeFlash(c),
		Nav:         b.nav(state, c.Path()),
		CurrentPath: c.RequestURI(),
		Content:     content,
	}
	if name == views.PageLoading {
		data.RefreshAfter = 1
	}
	body, err := b.Views.Page(name, data)
	if err != nil {
		logger.Error(c.Context(), "Render page failed", zap.String("page", name), zap.Error(err))
		return mycontext.HTML(consts.StatusInternalServerError, []byte("Internal Server Error"))
	}
	return mycontext.HTML(status, body)
}

// alert 阻塞式提示页，确认后回到 back
func (b *Base) alert(c *mycontext.Context, title, message, back string) *mycontext.Response {
	return b.page(c, consts.StatusBadRequest, views.PageAlert, title, &views.AlertView{Message: message, Back: back})
}

// nav 只列出当前用户有权查看的资源
func (b *Base) nav(state service.State, path string) []views.NavItem {
	if !state.IsAuthenticated() {
		return nil
	}
	var items []views.NavItem
	for _, res := range b.Resources {
		if !gate.Check(state, res.Requirement(ActionView)) {
			continue
		}
		items = append(items, views.NavItem{
			Title:  res.Title,
			Href:   res.Path,
			Active: path == res.Path || strings.HasPrefix(path, res.Path+"/"),
		})
	}
	return items
}

// token 当前会话的后端令牌；会话已失效时返回跳转登录页的响应
func (b *Base) token(c *mycontext.Context) (string, *mycontext.Response) {
	token, err := b.Auth.Token(c.Context(), c.SessionID())
	if err != nil {
		logger.Warn(c.Context(), "Read session token failed", zap.Error(err))
	}
	if token == "" {
		return "", b.toLogin(c, "")
	}
	return token, nil
}

// expired 后端拒绝令牌时降级为未登录
func (b *Base) expired(c *mycontext.Context, err error) (*mycontext.Response, bool) {
	if !backend.IsUnauthorized(err) {
		return nil, false
	}
	b.Auth.Invalidate(c.Context(), c.SessionID())
	return b.toLogin(c, "Your session has expired. Please sign in again."), true
}

func (b *Base) toLogin(c *mycontext.Context, message string) *mycontext.Response {
	if c.WantsJSON() {
		return mycontext.Unauthorized("login required")
	}
	if message != "" {
		setFlash(c, "warning", message)
	}
	return mycontext.Found(LoginPath + "?next=" + url.QueryEscape(c.RequestURI()))
}

// setFlash 下一次页面渲染时显示；SetCookie 会对值做 QueryEscape
func setFlash(c *mycontext.Context, kind, message string) {
	c.SetCookie(FlashCookie, kind+"|"+message, 60, "/", false, true)
}

func takeFlash(c *mycontext.Context) *views.Flash {
	raw := c.Cookie(FlashCookie)
	if raw == "" {
		return nil
	}
	c.ClearCookie(FlashCookie, "/")
	value, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(value, "|")
	if !ok || message == "" {
		return nil
	}
	return &views.Flash{Kind: kind, Message: message}
}

// safeRedirect 只接受站内路径
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

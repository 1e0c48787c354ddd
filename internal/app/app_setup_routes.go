package app

import (
	"github.com/ayxworxfr/go_backoffice/internal/app/router"
	"github.com/ayxworxfr/go_backoffice/internal/gate"
	"github.com/ayxworxfr/go_backoffice/internal/handler"
	"github.com/ayxworxfr/go_backoffice/internal/metrics"
	"github.com/ayxworxfr/go_backoffice/internal/middleware"
)

// Handlers 路由用到的处理器
type Handlers struct {
	Auth      *handler.AuthHandler
	System    *handler.SystemHandler
	Resources []*handler.ResourceHandler
}

// NewHandlers 为每个资源页创建一个处理器
func NewHandlers(s *Services, base *handler.Base) *Handlers {
	h := &Handlers{
		Auth:   handler.NewAuthHandler(base),
		System: handler.NewSystemHandler(base, s.Health),
	}
	for _, res := range base.Resources {
		h.Resources = append(h.Resources, handler.NewResourceHandler(base, res))
	}
	return h
}

func (a *App) SetupRoutes(h *Handlers) {
	root := a.Group("/")
	root.GET("/health", h.System.Health)
	if a.config.Metrics.Enable {
		root.GET(a.config.Metrics.Path, metrics.Handler())
	}
	root.POST("/theme", h.System.Theme)

	// 公开路由
	root.GET(handler.LoginPath, h.Auth.LoginPage)
	root.POST(handler.LoginPath, h.Auth.Login)
	root.GET("/register", h.Auth.RegisterPage)
	root.POST("/register", h.Auth.Register)
	root.POST("/logout", h.Auth.Logout)

	// 需要登录的路由
	protected := a.Group("/")
	protected.Use(middleware.RequireLogin())
	protected.GET("/", h.System.Home)
	protected.GET(gate.UnauthorizedPath, h.System.Unauthorized)

	for _, rh := range h.Resources {
		registerResource(protected, rh, h.System)
	}

	a.server.NoRoute(router.Wrap(h.System.NotFound))
}

// registerResource 列表页要求查看权限，其余操作在处理函数内按动作再检查
func registerResource(parent *router.RouterGroup, rh *handler.ResourceHandler, system *handler.SystemHandler) {
	res := rh.Resource()
	g := parent.Group(res.Path)
	g.Use(gate.Require(res.Requirement(handler.ActionView), system.Loading))

	g.GET("", rh.List)
	g.GET("/rows", rh.Rows)
	g.GET("/export", rh.Export)
	g.POST("", rh.Create)
	g.POST("/:id", rh.Update)
	g.POST("/:id/trash", rh.Trash)
	g.POST("/:id/restore", rh.Restore)
	g.POST("/:id/delete", rh.Delete)
}

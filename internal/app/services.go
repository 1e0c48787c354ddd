package app

import (
	"context"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/backend"
	"github.com/ayxworxfr/go_backoffice/internal/config"
	"github.com/ayxworxfr/go_backoffice/internal/handler"
	"github.com/ayxworxfr/go_backoffice/internal/metrics"
	"github.com/ayxworxfr/go_backoffice/internal/middleware/sentinel"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/internal/session"
	"github.com/ayxworxfr/go_backoffice/internal/table"
	"github.com/ayxworxfr/go_backoffice/internal/views"
	"github.com/ayxworxfr/go_backoffice/pkg/crypter"
	"github.com/ayxworxfr/go_backoffice/pkg/httpclient"
	"github.com/ayxworxfr/go_backoffice/pkg/jwtauth"
	"github.com/pkg/errors"
)

const (
	// 健康探测单独使用的客户端，允许少量重试
	healthTimeout = 5 * time.Second
	healthRetries = 2
	healthBackoff = 200 * time.Millisecond
)

// Services 进程内共享的服务实例
type Services struct {
	Store    session.Store
	Sessions *session.Manager
	Cookie   *session.Cookie
	Backend  *backend.Client
	Tables   *table.Registry
	Auth     *service.AuthService
	Health   *service.HealthService
	Views    *views.Renderer
	// Limiter 未启用时为 nil
	Limiter *sentinel.IPLimiter
}

// NewServices 按配置组装会话、后端客户端、表格注册表与认证服务
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	store, err := session.NewStore(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create session store")
	}

	signer, err := jwtauth.NewSigner(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "create cookie signer")
	}

	renderer, err := views.New()
	if err != nil {
		store.Close()
		return nil, errors.Wrap(err, "parse templates")
	}

	client := backend.New(cfg.Backend.BaseURL,
		httpclient.WithTimeout(cfg.Backend.TimeoutDuration()),
		httpclient.WithObserver(metrics.ObserveBackend),
	)
	tables := table.NewRegistry(table.Options{
		Debounce: cfg.Table.DebounceDuration(),
		PerPage:  cfg.Table.DefaultPageSize,
		ErrorMessage: func(err error) string {
			return backend.Message(err, "Failed to load data.")
		},
		Observer: metrics.ObserveTable,
	})
	sessions := session.NewManager(store, crypter.NewAESCrypterFromSecret(cfg.Session.EncryptionKey))

	healthClient := backend.New(cfg.Backend.BaseURL,
		httpclient.WithTimeout(healthTimeout),
		httpclient.WithRetries(healthRetries),
		httpclient.WithBackoff(healthBackoff),
	)

	var limiter *sentinel.IPLimiter
	if cfg.AuthLimit.Enable {
		limiter = sentinel.NewIPLimiter(sentinel.IPLimiterConfig{
			RPS:    cfg.AuthLimit.RPS,
			Burst:  cfg.AuthLimit.Burst,
			Routes: cfg.AuthLimit.Routes,
		})
	}

	return &Services{
		Store:    store,
		Sessions: sessions,
		Cookie:   session.NewCookie(cfg.Session.CookieName, cfg.Session.CookieSecure, signer),
		Backend:  client,
		Tables:   tables,
		Auth:     service.NewAuthService(client, sessions, tables),
		Health:   service.NewHealthService(healthClient, cfg.Backend.HealthPath),
		Views:    renderer,
		Limiter:  limiter,
	}, nil
}

// Base 处理函数共享的依赖
func (s *Services) Base(cfg *config.Config) *handler.Base {
	return &handler.Base{
		Auth:      s.Auth,
		Backend:   s.Backend,
		Cookie:    s.Cookie,
		Tables:    s.Tables,
		Views:     s.Views,
		Table:     cfg.Table,
		Resources: handler.Resources(),
	}
}

// Close 停止所有加载器并关闭会话存储
func (s *Services) Close() error {
	s.Tables.Close()
	return errors.Wrap(s.Store.Close(), "close session store")
}

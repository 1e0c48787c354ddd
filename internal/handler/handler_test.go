package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/app/router"
	"github.com/ayxworxfr/go_backoffice/internal/backend"
	"github.com/ayxworxfr/go_backoffice/internal/config"
	"github.com/ayxworxfr/go_backoffice/internal/domain/vo"
	"github.com/ayxworxfr/go_backoffice/internal/gate"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/internal/session"
	"github.com/ayxworxfr/go_backoffice/internal/table"
	"github.com/ayxworxfr/go_backoffice/internal/views"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/httpclient"
	"github.com/ayxworxfr/go_backoffice/pkg/jwtauth"
	"github.com/cloudwego/hertz/pkg/app"
	hconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/require"
)

const (
	testSID      = "sid-1"
	testPassword = "secret-pass"
	badLogin     = "These credentials do not match our records."
)

type fakeAuth struct {
	mu          sync.Mutex
	tokens      map[string]string
	invalidated []string
	loggedOut   []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{tokens: make(map[string]string)}
}

func (a *fakeAuth) Login(_ context.Context, sid, email, password string) (service.Result, error) {
	if password != testPassword {
		return service.Result{Message: badLogin}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[sid] = "token-" + email
	return service.Result{OK: true}, nil
}

func (a *fakeAuth) Register(_ context.Context, sid string, req backend.RegisterRequest) (service.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[sid] = "token-" + req.Email
	return service.Result{OK: true}, nil
}

func (a *fakeAuth) Logout(_ context.Context, sid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedOut = append(a.loggedOut, sid)
	delete(a.tokens, sid)
}

func (a *fakeAuth) Invalidate(_ context.Context, sid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invalidated = append(a.invalidated, sid)
	delete(a.tokens, sid)
}

func (a *fakeAuth) Token(_ context.Context, sid string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokens[sid], nil
}

// fakeBackend 内存中的 REST 后端
type fakeBackend struct {
	mu      sync.Mutex
	rows    []backend.Record
	lists   int
	created []backend.Record
	saveErr error
	listErr error
	getErr  error
}

func (b *fakeBackend) List(_ context.Context, _, _ string, q backend.ListQuery) (*backend.ListResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists++
	if b.listErr != nil {
		return nil, b.listErr
	}
	data := make([]backend.Record, 0, len(b.rows))
	for _, row := range b.rows {
		if q.Search != "" && !strings.Contains(strings.ToLower(row["name"].(string)), strings.ToLower(q.Search)) {
			continue
		}
		copied := make(backend.Record, len(row))
		for k, v := range row {
			copied[k] = v
		}
		data = append(data, copied)
	}
	return &backend.ListResult{Data: data, Total: len(data)}, nil
}

func (b *fakeBackend) listCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lists
}

func (b *fakeBackend) Get(_ context.Context, _, _, id string) (backend.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	for _, row := range b.rows {
		if row["id"] == id {
			return row, nil
		}
	}
	return nil, &backend.APIError{Status: http.StatusNotFound}
}

func (b *fakeBackend) Create(_ context.Context, _, _ string, body backend.Record, _ []httpclient.FilePart) (backend.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return nil, b.saveErr
	}
	b.created = append(b.created, body)
	return body, nil
}

func (b *fakeBackend) Update(_ context.Context, _, _, id string, body backend.Record, _ []httpclient.FilePart) (backend.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return nil, b.saveErr
	}
	body["id"] = id
	return body, nil
}

func (b *fakeBackend) Delete(_ context.Context, _, _, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, row := range b.rows {
		if row["id"] == id {
			b.rows = append(b.rows[:i], b.rows[i+1:]...)
			return nil
		}
	}
	return &backend.APIError{Status: http.StatusNotFound, Message: "Record not found."}
}

func (b *fakeBackend) Trash(_ context.Context, _, _, id string) error {
	return b.setDeleted(id, "2024-05-01T10:00:00Z")
}

func (b *fakeBackend) Restore(_ context.Context, _, _, id string) error {
	return b.setDeleted(id, nil)
}

func (b *fakeBackend) setDeleted(id string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range b.rows {
		if row["id"] == id {
			row["deleted_at"] = value
			return nil
		}
	}
	return &backend.APIError{Status: http.StatusNotFound}
}

func (b *fakeBackend) Options(context.Context, string, string, string, string) ([]backend.Option, error) {
	return []backend.Option{{Value: "1", Label: "Acme"}}, nil
}

type harness struct {
	engine  *route.Engine
	auth    *fakeAuth
	backend *fakeBackend
	base    *Base
	state   service.State
}

// newHarness 按 app 的方式注册路由；会话ID与认证状态由测试直接注入
func newHarness(t *testing.T, user *vo.User, health *service.HealthService) *harness {
	t.Helper()
	signer, err := jwtauth.NewSigner("test-secret", "1h")
	require.NoError(t, err)

	h := &harness{
		auth:    newFakeAuth(),
		backend: &fakeBackend{},
		state:   service.State{User: user},
	}
	if user != nil {
		h.auth.tokens[testSID] = "token"
	}
	tables := table.NewRegistry(table.Options{
		Debounce: time.Millisecond,
		ErrorMessage: func(err error) string {
			return backend.Message(err, "Failed to load data.")
		},
	})
	t.Cleanup(tables.Close)
	h.base = &Base{
		Auth:      h.auth,
		Backend:   h.backend,
		Cookie:    session.NewCookie("bo_session", false, signer),
		Tables:    tables,
		Views:     views.MustNew(),
		Table:     config.TableConfig{SearchDebounce: "1ms", DefaultPageSize: 10, PageSizes: []int{10, 25}},
		Resources: Resources(),
	}

	h.engine = route.NewEngine(hconfig.NewOptions(nil))
	h.engine.Use(func(ctx context.Context, c *app.RequestContext) {
		c.Set(mycontext.SessionIDKey, testSID)
		c.Set(mycontext.AuthStateKey, h.state)
		c.Next(ctx)
	})

	auth := NewAuthHandler(h.base)
	system := NewSystemHandler(h.base, health)
	root := router.NewRouterGroup(h.engine.Group("/"))
	root.GET("/health", system.Health)
	root.GET("/unauthorized", system.Unauthorized)
	root.POST("/theme", system.Theme)
	root.GET(LoginPath, auth.LoginPage)
	root.POST(LoginPath, auth.Login)
	root.POST("/register", auth.Register)
	root.POST("/logout", auth.Logout)
	for _, res := range h.base.Resources {
		rh := NewResourceHandler(h.base, res)
		g := root.Group(res.Path)
		g.Use(gate.Require(res.Requirement(ActionView), system.Loading))
		g.GET("", rh.List)
		g.GET("/rows", rh.Rows)
		g.GET("/export", rh.Export)
		g.POST("", rh.Create)
		g.POST("/:id", rh.Update)
		g.POST("/:id/trash", rh.Trash)
		g.POST("/:id/restore", rh.Restore)
		g.POST("/:id/delete", rh.Delete)
	}
	h.engine.NoRoute(router.Wrap(system.NotFound))
	return h
}

func (h *harness) get(path string, headers ...ut.Header) *ut.ResponseRecorder {
	return ut.PerformRequest(h.engine, http.MethodGet, path, nil, headers...)
}

func (h *harness) post(path, body string, headers ...ut.Header) *ut.ResponseRecorder {
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/x-www-form-urlencoded"})
	return ut.PerformRequest(h.engine, http.MethodPost, path,
		&ut.Body{Body: strings.NewReader(body), Len: len(body)}, headers...)
}

var jsonAccept = ut.Header{Key: "Accept", Value: "application/json"}

func userWith(permissions ...string) *vo.User {
	return &vo.User{ID: "1", Name: "Ada", Email: "ada@example.com", Permissions: permissions}
}

func location(w *ut.ResponseRecorder) string {
	return string(w.Result().Header.Peek("Location"))
}

func body(w *ut.ResponseRecorder) string {
	return string(w.Result().Body())
}

// responseCookie 取响应中指定名称的 Set-Cookie 值
func responseCookie(w *ut.ResponseRecorder, name string) (string, bool) {
	ck := protocol.AcquireCookie()
	defer protocol.ReleaseCookie(ck)
	ck.SetKey(name)
	if !w.Result().Header.Cookie(ck) {
		return "", false
	}
	return string(ck.Value()), true
}

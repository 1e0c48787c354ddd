package middleware

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/ayxworxfr/go_backoffice/internal/domain/vo"
	"github.com/ayxworxfr/go_backoffice/internal/gate"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/internal/session"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/jwtauth"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	users map[string]*vo.User
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, sid string) service.State {
	f.calls++
	return service.State{User: f.users[sid]}
}

func newCookie(t *testing.T) *session.Cookie {
	signer, err := jwtauth.NewSigner("test-secret", "1h")
	require.NoError(t, err)
	return session.NewCookie("bo_session", false, signer)
}

func TestSessionMiddleware_IssuesCookieForNewVisitor(t *testing.T) {
	resolver := &fakeResolver{}
	engine := route.NewEngine(config.NewOptions(nil))
	engine.Use(SessionMiddleware(newCookie(t), resolver))

	var sid string
	var state service.State
	engine.GET("/", func(ctx context.Context, c *app.RequestContext) {
		sid = mycontext.NewContext(ctx, c).SessionID()
		state = gate.StateFrom(c)
		c.String(consts.StatusOK, "ok")
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Len(t, sid, 64)
	assert.False(t, state.IsAuthenticated())
	assert.Zero(t, resolver.calls, "a fresh session is never resolved")
	assert.Contains(t, string(w.Result().Header.Peek("Set-Cookie")), "bo_session=")
}

func TestSessionMiddleware_ResolvesExistingSession(t *testing.T) {
	cookie := newCookie(t)
	resolver := &fakeResolver{users: map[string]*vo.User{}}
	engine := route.NewEngine(config.NewOptions(nil))
	engine.Use(SessionMiddleware(cookie, resolver))

	var sid string
	var state service.State
	engine.GET("/", func(ctx context.Context, c *app.RequestContext) {
		sid = mycontext.NewContext(ctx, c).SessionID()
		state = gate.StateFrom(c)
		c.String(consts.StatusOK, "ok")
	})

	// 第一次请求拿到 cookie
	w := ut.PerformRequest(engine, http.MethodGet, "/", nil)
	setCookie := string(w.Result().Header.Peek("Set-Cookie"))
	value := strings.TrimPrefix(strings.SplitN(setCookie, ";", 2)[0], "bo_session=")
	require.NotEmpty(t, value)
	first := sid
	resolver.users[first] = &vo.User{ID: "7", Name: "Ada"}

	ut.PerformRequest(engine, http.MethodGet, "/", nil, ut.Header{Key: "Cookie", Value: "bo_session=" + value})
	assert.Equal(t, first, sid)
	require.True(t, state.IsAuthenticated())
	assert.Equal(t, "Ada", state.User.Name)
	assert.Equal(t, 1, resolver.calls)
}

func TestRequireLogin(t *testing.T) {
	tests := []struct {
		name     string
		state    service.State
		accept   string
		status   int
		location string
	}{
		{"anonymous page", service.State{}, "", http.StatusFound, "/login?next=%2Fbrands%3Fpage%3D2"},
		{"anonymous json", service.State{}, "application/json", http.StatusOK, ""},
		{"authenticated", service.State{User: &vo.User{ID: "1"}}, "", http.StatusOK, ""},
		{"loading passes through", service.State{Loading: true}, "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := route.NewEngine(config.NewOptions(nil))
			engine.Use(func(ctx context.Context, c *app.RequestContext) {
				c.Set(mycontext.AuthStateKey, tt.state)
			})
			called := false
			engine.GET("/brands", RequireLogin(), func(ctx context.Context, c *app.RequestContext) {
				called = true
				c.String(consts.StatusOK, "ok")
			})

			w := ut.PerformRequest(engine, http.MethodGet, "/brands?page=2", nil, ut.Header{Key: "Accept", Value: tt.accept})
			assert.Equal(t, tt.status, w.Result().StatusCode())
			assert.Equal(t, tt.location, string(w.Result().Header.Peek("Location")))
			if tt.accept == "application/json" {
				assert.False(t, called)
				assert.Contains(t, string(w.Result().Body()), `"code":200003`)
			}
		})
	}
}

func TestTraceContextMiddleware_RequestID(t *testing.T) {
	engine := route.NewEngine(config.NewOptions(nil))
	engine.Use(TraceContextMiddleware())
	engine.GET("/", func(ctx context.Context, c *app.RequestContext) {
		c.String(consts.StatusOK, "ok")
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/", nil)
	_, err := uuid.Parse(string(w.Result().Header.Peek(RequestIDHeader)))
	assert.NoError(t, err)

	id := uuid.NewString()
	w = ut.PerformRequest(engine, http.MethodGet, "/", nil, ut.Header{Key: RequestIDHeader, Value: id})
	assert.Equal(t, id, string(w.Result().Header.Peek(RequestIDHeader)))

	w = ut.PerformRequest(engine, http.MethodGet, "/", nil, ut.Header{Key: RequestIDHeader, Value: "<script>"})
	assert.NotEqual(t, "<script>", string(w.Result().Header.Peek(RequestIDHeader)))
}

func TestCorsMiddleware(t *testing.T) {
	engine := route.NewEngine(config.NewOptions(nil))
	engine.Use(CorsMiddleware([]string{"https://admin.example.com"}))
	engine.GET("/", func(ctx context.Context, c *app.RequestContext) {
		c.String(consts.StatusOK, "ok")
	})
	engine.OPTIONS("/", func(ctx context.Context, c *app.RequestContext) {
		c.String(consts.StatusOK, "should not run")
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/", nil, ut.Header{Key: "Origin", Value: "https://admin.example.com"})
	assert.Equal(t, "https://admin.example.com", string(w.Result().Header.Peek("Access-Control-Allow-Origin")))

	w = ut.PerformRequest(engine, http.MethodGet, "/", nil, ut.Header{Key: "Origin", Value: "https://evil.example.com"})
	assert.Empty(t, string(w.Result().Header.Peek("Access-Control-Allow-Origin")))

	w = ut.PerformRequest(engine, http.MethodOptions, "/", nil, ut.Header{Key: "Origin", Value: "https://admin.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Result().StatusCode())
}

func TestGlobalErrorHandlerMiddleware(t *testing.T) {
	engine := route.NewEngine(config.NewOptions(nil))
	engine.Use(GlobalErrorHandlerMiddleware(nil))
	engine.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		panic("boom")
	})

	w := ut.PerformRequest(engine, http.MethodGet, "/boom", nil, ut.Header{Key: "Accept", Value: "application/json"})
	assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), `"code"`)
}

func TestLoggerMiddleware_MasksSensitiveFields(t *testing.T) {
	l := NewLogger()
	engine := route.NewEngine(config.NewOptions(nil))

	var params map[string]string
	engine.POST("/login", func(ctx context.Context, c *app.RequestContext) {
		params = l.extractRequestParams(c)
		c.String(consts.StatusOK, "ok")
	})

	body := "email=a%40b.c&password=hunter22"
	ut.PerformRequest(engine, http.MethodPost, "/login?next=%2Fbrands",
		&ut.Body{Body: strings.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/x-www-form-urlencoded"})

	assert.Equal(t, "a@b.c", params["email"])
	assert.Equal(t, masked, params["password"])
	assert.Equal(t, "/brands", params["next"])
}

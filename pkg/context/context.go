package context

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol"
)

// 会话中间件写入请求上下文的键
const (
	SessionIDKey = "session_id"
	AuthStateKey = "auth_state"
)

// Context 是对 Hertz 的 app.RequestContext 的封装
type Context struct {
	ctx context.Context
	*app.RequestContext
}

// NewContext 创建一个新的 Context
func NewContext(ctx context.Context, c *app.RequestContext) *Context {
	return &Context{ctx: ctx, RequestContext: c}
}

// Context 返回原始的 context.Context
func (ctx *Context) Context() context.Context {
	if ctx.ctx == nil {
		return context.Background()
	}
	return ctx.ctx
}

// SessionID 返回会话中间件写入的会话ID
func (ctx *Context) SessionID() string {
	if v, ok := ctx.RequestContext.Get(SessionIDKey); ok {
		if sid, ok := v.(string); ok {
			return sid
		}
	}
	return ""
}

// SetCookie 添加一个 Set-Cookie 头，SameSite=Lax
func (ctx *Context) SetCookie(name, value string, maxAge int, path string, secure, httpOnly bool) {
	ctx.RequestContext.SetCookie(name, value, maxAge, path, "", protocol.CookieSameSiteLaxMode, secure, httpOnly)
}

// ClearCookie 让浏览器删除指定 cookie
func (ctx *Context) ClearCookie(name, path string) {
	ctx.RequestContext.SetCookie(name, "", -1, path, "", protocol.CookieSameSiteLaxMode, false, true)
}

// Cookie 返回请求中指定名称的 cookie 值
func (ctx *Context) Cookie(name string) string {
	return string(ctx.RequestContext.Cookie(name))
}

// SetHeader 设置响应头
func (ctx *Context) SetHeader(key, value string) {
	ctx.RequestContext.Response.Header.Set(key, value)
}

// GetHeader 获取请求头
func (ctx *Context) GetHeader(key string) string {
	return string(ctx.RequestContext.Request.Header.Peek(key))
}

// GetResponseHeader 获取响应头
func (ctx *Context) GetResponseHeader(key string) string {
	return string(ctx.RequestContext.Response.Header.Peek(key))
}

// WantsJSON 客户端是否期望 JSON 响应
func (ctx *Context) WantsJSON() bool {
	return strings.Contains(ctx.GetHeader("Accept"), "application/json")
}

// Method 返回请求的 HTTP 方法
func (ctx *Context) Method() string {
	return string(ctx.RequestContext.Method())
}

// Path 返回请求的路径
func (ctx *Context) Path() string {
	return string(ctx.RequestContext.Path())
}

// RequestURI 返回带查询串的请求地址
func (ctx *Context) RequestURI() string {
	return string(ctx.RequestContext.Request.RequestURI())
}

// FormValues 汇总 urlencoded 与 multipart 表单中的文本字段
func (ctx *Context) FormValues() map[string][]string {
	values := make(map[string][]string)
	ctx.RequestContext.PostArgs().VisitAll(func(key, value []byte) {
		k := string(key)
		values[k] = append(values[k], string(value))
	})
	if form, err := ctx.RequestContext.MultipartForm(); err == nil && form != nil {
		for k, vs := range form.Value {
			values[k] = append(values[k], vs...)
		}
	}
	return values
}

// FormFiles 返回 multipart 表单中的文件
func (ctx *Context) FormFiles() map[string][]*multipart.FileHeader {
	form, err := ctx.RequestContext.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File
}

package session

import (
	"github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/jwtauth"
)

// Cookie 签名会话 cookie，只携带会话ID
type Cookie struct {
	name   string
	secure bool
	signer *jwtauth.Signer
}

func NewCookie(name string, secure bool, signer *jwtauth.Signer) *Cookie {
	return &Cookie{name: name, secure: secure, signer: signer}
}

// Name cookie 名称
func (c *Cookie) Name() string {
	return c.name
}

// Read 校验 cookie 并返回会话ID
func (c *Cookie) Read(ctx *context.Context) (string, bool) {
	value := ctx.Cookie(c.name)
	if value == "" {
		return "", false
	}
	claims, err := c.signer.Parse(value)
	if err != nil {
		return "", false
	}
	return claims.SessionID, true
}

// Issue 创建新会话并写入 cookie
func (c *Cookie) Issue(ctx *context.Context) (string, error) {
	sid := NewSessionID()
	token, _, err := c.signer.Sign(sid)
	if err != nil {
		return "", err
	}
	ctx.SetCookie(c.name, token, int(c.signer.TTL().Seconds()), "/", c.secure, true)
	return sid, nil
}

// Ensure 读取已有会话，没有或无效时签发新的
func (c *Cookie) Ensure(ctx *context.Context) (sid string, issued bool, err error) {
	if sid, ok := c.Read(ctx); ok {
		return sid, false, nil
	}
	sid, err = c.Issue(ctx)
	return sid, err == nil, err
}

func (c *Cookie) Clear(ctx *context.Context) {
	ctx.ClearCookie(c.name, "/")
}

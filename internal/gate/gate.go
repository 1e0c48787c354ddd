package gate

import (
	"context"

	"github.com/ayxworxfr/go_backoffice/internal/service"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"
)

// UnauthorizedPath 权限不足时的跳转地址
const UnauthorizedPath = "/unauthorized"

// Decision 访问判定结果
type Decision int

const (
	// Placeholder 认证状态尚未确定，只显示加载占位
	Placeholder Decision = iota
	Allow
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Placeholder:
		return "placeholder"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Requirement 角色之间、权限之间是“任一”，角色与权限之间是“同时”
type Requirement struct {
	Roles       []string
	Permissions []string
}

// Permission 只要求单个权限
func Permission(name string) Requirement {
	return Requirement{Permissions: []string{name}}
}

// Role 只要求单个角色
func Role(name string) Requirement {
	return Requirement{Roles: []string{name}}
}

func (r Requirement) IsEmpty() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// Decide 根据认证状态与要求给出判定；空要求总是放行
func Decide(state service.State, req Requirement) Decision {
	if state.Loading {
		return Placeholder
	}
	if req.IsEmpty() {
		return Allow
	}
	if state.User.HasAnyRole(req.Roles) && state.User.HasAnyPermission(req.Permissions) {
		return Allow
	}
	return Redirect
}

// StateFrom 读取会话中间件写入的认证状态
func StateFrom(c *app.RequestContext) service.State {
	if v, ok := c.Get(mycontext.AuthStateKey); ok {
		if state, ok := v.(service.State); ok {
			return state
		}
	}
	return service.State{}
}

// Require 每个请求重新判定；placeholder 负责渲染加载页
func Require(req Requirement, placeholder app.HandlerFunc) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		switch Decide(StateFrom(c), req) {
		case Allow:
			c.Next(ctx)
		case Placeholder:
			placeholder(ctx, c)
			c.Abort()
		case Redirect:
			logger.Info(ctx, "Access denied by gate",
				zap.String("path", string(c.Request.URI().Path())),
				zap.Strings("roles", req.Roles),
				zap.Strings("permissions", req.Permissions))
			if mycontext.NewContext(ctx, c).WantsJSON() {
				mycontext.Forbidden("insufficient role or permission").Write(mycontext.NewContext(ctx, c))
			} else {
				c.Redirect(consts.StatusFound, []byte(UnauthorizedPath))
			}
			c.Abort()
		}
	}
}

// Check 供模板等非中间件场景使用
func Check(state service.State, req Requirement) bool {
	return Decide(state, req) == Allow
}

package handler

import (
	"github.com/ayxworxfr/go_backoffice/internal/backend"
	"github.com/ayxworxfr/go_backoffice/internal/domain/params"
	"github.com/ayxworxfr/go_backoffice/internal/form"
	"github.com/ayxworxfr/go_backoffice/internal/views"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

var loginFields = form.MustFieldList(
	&form.EmailField{Common: form.Common{Key: "email", Required: true, Placeholder: "you@example.com"}},
	&form.PasswordField{Common: form.Common{Key: "password", Required: true}},
)

var registerFields = form.MustFieldList(
	&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 255}},
	&form.EmailField{Common: form.Common{Key: "email", Required: true, MaxLength: 255}},
	&form.PasswordField{Common: form.Common{Key: "password", Required: true, MinLength: 8}},
	&form.PasswordField{Common: form.Common{
		Key:      "password_confirmation",
		Label:    "Confirm password",
		Required: true,
		Validator: func(value string, values map[string]string) string {
			if value != values["password"] {
				return "Passwords do not match"
			}
			return ""
		},
	}},
)

// IAuthHandler 登录、注册与登出
type IAuthHandler interface {
	LoginPage(c *mycontext.Context, req *params.LoginPageRequest) *mycontext.Response
	Login(c *mycontext.Context, req *params.LoginPageRequest) *mycontext.Response
	RegisterPage(c *mycontext.Context) *mycontext.Response
	Register(c *mycontext.Context) *mycontext.Response
	Logout(c *mycontext.Context) *mycontext.Response
}

type AuthHandler struct {
	*Base
}

var _ IAuthHandler = (*AuthHandler)(nil)

func NewAuthHandler(base *Base) *AuthHandler {
	return &AuthHandler{Base: base}
}

// @route Get /login
func (h *AuthHandler) LoginPage(c *mycontext.Context, req *params.LoginPageRequest) *mycontext.Response {
	if h.state(c).IsAuthenticated() {
		return mycontext.Found(safeRedirect(req.Next, "/"))
	}
	return h.authPage(c, consts.StatusOK, views.PageLogin, "Login", form.New(loginFields, form.ModeCreate, nil), "", req.Next)
}

// @route Post /login
func (h *AuthHandler) Login(c *mycontext.Context, req *params.LoginPageRequest) *mycontext.Response {
	f := form.New(loginFields, form.ModeCreate, nil)
	f.Bind(c.FormValues())
	if errs := f.Validate(); len(errs) > 0 {
		if c.WantsJSON() {
			return mycontext.ValidationFailed(errs)
		}
		return h.authPage(c, consts.StatusUnprocessableEntity, views.PageLogin, "Login", f, "", req.Next)
	}

	// 登录后换新的会话ID，旧会话留下的 loader 一并释放
	previous := c.SessionID()
	sid, err := h.Cookie.Issue(c)
	if err != nil {
		logger.Error(c.Context(), "Issue session cookie failed", zap.Error(err))
		return mycontext.InternalError(err)
	}
	h.Auth.Invalidate(c.Context(), previous)

	result, err := h.Auth.Login(c.Context(), sid, f.Value("email"), f.Value("password"))
	if err != nil {
		logger.Error(c.Context(), "Persist login failed", zap.Error(err))
		return mycontext.InternalError(err)
	}
	if !result.OK {
		f.MergeServerErrors(result.Errors)
		if c.WantsJSON() {
			return mycontext.Unauthorized(result.Message)
		}
		return h.authPage(c, consts.StatusUnauthorized, views.PageLogin, "Login", f, result.Message, req.Next)
	}
	if c.WantsJSON() {
		return mycontext.NoContent()
	}
	return mycontext.Redirect(safeRedirect(req.Next, "/"))
}

// @route Get /register
func (h *AuthHandler) RegisterPage(c *mycontext.Context) *mycontext.Response {
	if h.state(c).IsAuthenticated() {
		return mycontext.Found("/")
	}
	return h.authPage(c, consts.StatusOK, views.PageRegister, "Register", form.New(registerFields, form.ModeCreate, nil), "", "")
}

// @route Post /register
func (h *AuthHandler) Register(c *mycontext.Context) *mycontext.Response {
	f := form.New(registerFields, form.ModeCreate, nil)
	f.Bind(c.FormValues())
	if errs := f.Validate(); len(errs) > 0 {
		if c.WantsJSON() {
			return mycontext.ValidationFailed(errs)
		}
		return h.authPage(c, consts.StatusUnprocessableEntity, views.PageRegister, "Register", f, "", "")
	}

	var req backend.RegisterRequest
	if err := mapstructure.Decode(f.Payload(), &req); err != nil {
		return mycontext.ParamError(err)
	}

	previous := c.SessionID()
	sid, err := h.Cookie.Issue(c)
	if err != nil {
		logger.Error(c.Context(), "Issue session cookie failed", zap.Error(err))
		return mycontext.InternalError(err)
	}
	h.Auth.Invalidate(c.Context(), previous)

	result, err := h.Auth.Register(c.Context(), sid, req)
	if err != nil {
		logger.Error(c.Context(), "Persist registration failed", zap.Error(err))
		return mycontext.InternalError(err)
	}
	if !result.OK {
		f.MergeServerErrors(result.Errors)
		if c.WantsJSON() {
			if len(result.Errors) > 0 {
				return mycontext.ValidationFailed(result.Errors)
			}
			return mycontext.ParamError(result.Message)
		}
		return h.authPage(c, consts.StatusUnprocessableEntity, views.PageRegister, "Register", f, result.Message, "")
	}
	if c.WantsJSON() {
		return mycontext.NoContent()
	}
	setFlash(c, "success", "Welcome, your account is ready.")
	return mycontext.Redirect("/")
}

// @route Post /logout
func (h *AuthHandler) Logout(c *mycontext.Context) *mycontext.Response {
	h.Auth.Logout(c.Context(), c.SessionID())
	h.Cookie.Clear(c)
	if c.WantsJSON() {
		return mycontext.NoContent()
	}
	return mycontext.Redirect(LoginPath)
}

func (h *AuthHandler) authPage(c *mycontext.Context, status int, name, title string, f *form.Form, message, next string) *mycontext.Response {
	fields, err := form.Render(f)
	if err != nil {
		logger.Error(c.Context(), "Render auth form failed", zap.String("page", name), zap.Error(err))
		return mycontext.HTML(consts.StatusInternalServerError, []byte("Internal Server Error"))
	}
	return h.page(c, status, name, title, &views.AuthView{
		Message: message,
		Fields:  fields,
		Next:    safeRedirect(next, ""),
	})
}

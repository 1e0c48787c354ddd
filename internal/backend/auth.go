package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// FlexString 兼容数字与字符串的 JSON 值
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// NameList 兼容 ["admin"] 与 [{"name":"admin"}] 两种格式
type NameList []string

func (l *NameList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	names := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			names = append(names, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		if obj.Name != "" {
			names = append(names, obj.Name)
		}
	}
	*l = names
	return nil
}

// User 后端返回的用户资料
type User struct {
	ID          FlexString `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Roles       NameList   `json:"roles"`
	Permissions NameList   `json:"permissions"`
}

// LoginRequest 登录参数
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest 注册参数
type RegisterRequest struct {
	Name                 string `json:"name" mapstructure:"name"`
	Email                string `json:"email" mapstructure:"email"`
	Password             string `json:"password" mapstructure:"password"`
	PasswordConfirmation string `json:"password_confirmation" mapstructure:"password_confirmation"`
}

// AuthResponse 登录/注册返回 {user, token}
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Login POST /auth/login
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var rsp AuthResponse
	if err := c.do(ctx, "", http.MethodPost, "/auth/login", nil, req, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// Register POST /auth/register
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var rsp AuthResponse
	if err := c.do(ctx, "", http.MethodPost, "/auth/register", nil, req, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

// Logout POST /auth/logout，响应体忽略
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, token, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Me GET /auth/me；兼容直接返回用户、{user} 与 {data} 三种格式
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var raw map[string]json.RawMessage
	if err := c.do(ctx, token, http.MethodGet, "/auth/me", nil, nil, &raw); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	for _, key := range []string{"user", "data"} {
		if inner, ok := raw[key]; ok && len(inner) > 0 && inner[0] == '{' {
			payload = inner
			break
		}
	}

	var user User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, err
	}
	return &user, nil
}


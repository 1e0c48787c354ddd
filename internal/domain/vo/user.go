package vo

import "github.com/samber/lo"

// User 已登录用户，由登录或启动时的令牌校验得到
type User struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// IsAuthenticated nil 表示匿名
func (u *User) IsAuthenticated() bool {
	return u != nil
}

// HasRole 是否拥有角色
func (u *User) HasRole(name string) bool {
	return u != nil && lo.Contains(u.Roles, name)
}

// HasPermission 是否拥有权限
func (u *User) HasPermission(name string) bool {
	return u != nil && lo.Contains(u.Permissions, name)
}

// HasAnyRole 拥有其中任一角色，names 为空时视为满足
func (u *User) HasAnyRole(names []string) bool {
	return len(names) == 0 || (u != nil && lo.Some(u.Roles, names))
}

// HasAnyPermission 拥有其中任一权限，names 为空时视为满足
func (u *User) HasAnyPermission(names []string) bool {
	return len(names) == 0 || (u != nil && lo.Some(u.Permissions, names))
}

// Initials 头像上显示的首字母
func (u *User) Initials() string {
	if u == nil || u.Name == "" {
		return "?"
	}
	return string([]rune(u.Name)[:1])
}

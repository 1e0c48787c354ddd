package handler

import (
	"github.com/ayxworxfr/go_backoffice/internal/form"
	"github.com/ayxworxfr/go_backoffice/internal/gate"
	"github.com/ayxworxfr/go_backoffice/pkg/export"
	"github.com/samber/lo"
)

// 资源上的操作，对应权限 {key}.{action}
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// Resource 一个 CRUD 页面：后端接口、字段、列与访问要求
type Resource struct {
	// Key 表格键，同时是权限前缀
	Key      string
	Title    string
	Singular string
	// Path 控制台中的页面路径
	Path string
	// Endpoint 后端接口路径
	Endpoint string
	Fields   form.FieldList
	Columns  []export.Column
	// Roles 非空时还要求拥有其中任一角色
	Roles []string
	// SoftDelete 后端支持 trash/restore
	SoftDelete bool
	// IDKey 记录主键，默认 id
	IDKey string
	// Lines 采购单等带明细的资源
	Lines *LineEditor
}

// Requirement 操作需要的角色与权限
func (r *Resource) Requirement(action string) gate.Requirement {
	return gate.Requirement{
		Roles:       r.Roles,
		Permissions: []string{r.Key + "." + action},
	}
}

// ModeAction 表单模式对应的操作
func ModeAction(mode form.Mode) string {
	switch mode {
	case form.ModeCreate:
		return ActionCreate
	case form.ModeEdit:
		return ActionEdit
	}
	return ActionView
}

func (r *Resource) idKey() string {
	return lo.Ternary(r.IDKey == "", "id", r.IDKey)
}

// RowID 行的主键文本
func (r *Resource) RowID(row map[string]any) string {
	return export.Text(row[r.idKey()])
}

// Trashed 软删除的行带 deleted_at
func (r *Resource) Trashed(row map[string]any) bool {
	if !r.SoftDelete {
		return false
	}
	v, ok := row["deleted_at"]
	return ok && v != nil && v != ""
}

// Multipart 有文件字段时表单使用 multipart 编码
func (r *Resource) Multipart() bool {
	return r.Fields.HasFiles()
}

// ItemPath 单条记录的控制台路径
func (r *Resource) ItemPath(id, action string) string {
	return r.Path + "/" + id + "/" + action
}

package form

import (
	"fmt"

	"github.com/ettle/strcase"
	"github.com/samber/lo"
)

// Mode 表单模式
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
	ModeView   Mode = "view"
)

// ParseMode 未知值返回 false
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeCreate, ModeEdit, ModeView:
		return m, true
	}
	return "", false
}

// Validator 自定义校验，返回空串表示通过
type Validator func(value string, values map[string]string) string

// Common 所有字段共有的配置
type Common struct {
	Key         string
	Label       string
	Placeholder string
	Default     string
	Help        string
	Required    bool
	ReadOnly    bool
	Hidden      bool
	// Modes 为空表示所有模式都显示
	Modes     []Mode
	MinLength int
	MaxLength int
	Pattern   string
	// PatternMessage 为空时使用默认提示
	PatternMessage string
	Validator      Validator
	// Expr 布尔表达式，可用变量 value 与 values
	Expr        string
	ExprMessage string
}

func (c *Common) base() *Common {
	return c
}

// DisplayLabel 未配置 Label 时由 Key 推导
func (c *Common) DisplayLabel() string {
	if c.Label != "" {
		return c.Label
	}
	return strcase.ToCase(c.Key, strcase.TitleCase, ' ')
}

// VisibleIn 字段在该模式下是否显示
func (c *Common) VisibleIn(mode Mode) bool {
	return len(c.Modes) == 0 || lo.Contains(c.Modes, mode)
}

// Field 字段的标签联合，只能是本包定义的变体
type Field interface {
	base() *Common
}

type TextField struct {
	Common
}

type EmailField struct {
	Common
}

type PasswordField struct {
	Common
}

type NumberField struct {
	Common
	Min  *float64
	Max  *float64
	Step string
}

type TextareaField struct {
	Common
	Rows int
}

// Option 下拉选项
type Option struct {
	Value string
	Label string
}

// SelectField 选项可以写死，也可以从后端接口加载
type SelectField struct {
	Common
	Options         []Option
	OptionsEndpoint string
	OptionValue     string
	OptionLabel     string
	Multiple        bool
}

type CheckboxField struct {
	Common
}

type DateField struct {
	Common
}

type FileField struct {
	Common
	Accept   string
	Multiple bool
}

// Base 返回字段的公共配置
func Base(f Field) *Common {
	return f.base()
}

// Float 配置 NumberField 边界时使用
func Float(v float64) *float64 {
	return &v
}

// FieldList 键唯一的字段列表
type FieldList []Field

// NewFieldList 键为空或重复时报错
func NewFieldList(fields ...Field) (FieldList, error) {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("field #%d is nil", i)
		}
		key := f.base().Key
		if key == "" {
			return nil, fmt.Errorf("field #%d has empty key", i)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate field key %q", key)
		}
		seen[key] = true
	}
	return FieldList(fields), nil
}

// MustFieldList 用于包级变量的静态配置
func MustFieldList(fields ...Field) FieldList {
	list, err := NewFieldList(fields...)
	if err != nil {
		panic(err)
	}
	return list
}

// Visible 该模式下显示的字段
func (l FieldList) Visible(mode Mode) FieldList {
	return lo.Filter(l, func(f Field, _ int) bool {
		return f.base().VisibleIn(mode)
	})
}

// Get 按键查找
func (l FieldList) Get(key string) (Field, bool) {
	return lo.Find(l, func(f Field) bool {
		return f.base().Key == key
	})
}

// Selects 需要从接口加载选项的下拉字段
func (l FieldList) Selects() []*SelectField {
	var selects []*SelectField
	for _, f := range l {
		if s, ok := f.(*SelectField); ok && s.OptionsEndpoint != "" {
			selects = append(selects, s)
		}
	}
	return selects
}

// HasFiles 是否包含文件字段，决定表单编码
func (l FieldList) HasFiles() bool {
	return lo.SomeBy(l, func(f Field) bool {
		_, ok := f.(*FileField)
		return ok
	})
}

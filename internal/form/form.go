package form

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/ayxworxfr/go_backoffice/pkg/export"
	"github.com/samber/lo"
)

// ErrInvalid 本地校验未通过，提交被拦截
var ErrInvalid = errors.New("form has validation errors")

// Form 一次表单编辑的状态
type Form struct {
	fields  FieldList
	mode    Mode
	values  map[string]string
	multi   map[string][]string
	errors  map[string][]string
	options map[string][]Option
}

// New 初始值依次取 record[key]、Default、空串
func New(fields FieldList, mode Mode, record map[string]any) *Form {
	f := &Form{
		fields:  fields,
		mode:    mode,
		values:  make(map[string]string, len(fields)),
		multi:   make(map[string][]string),
		errors:  make(map[string][]string),
		options: make(map[string][]Option),
	}
	for _, field := range fields {
		c := field.base()
		raw, ok := record[c.Key]
		if !ok || raw == nil {
			f.values[c.Key] = c.Default
			continue
		}
		if s, isSelect := field.(*SelectField); isSelect && s.Multiple {
			f.multi[c.Key] = initialList(raw, s.OptionValue)
			f.values[c.Key] = strings.Join(f.multi[c.Key], ",")
			continue
		}
		f.values[c.Key] = initialValue(field, raw)
	}
	return f
}

func initialValue(field Field, raw any) string {
	switch v := field.(type) {
	case *SelectField:
		return optionKey(raw, v.OptionValue)
	case *CheckboxField:
		switch v := raw.(type) {
		case bool:
			return strconv.FormatBool(v)
		case float64:
			return strconv.FormatBool(v != 0)
		}
		return strconv.FormatBool(truthy(export.Text(raw)))
	case *DateField:
		// 后端可能返回完整时间戳
		s := export.Text(raw)
		if len(s) > 10 && s[4] == '-' && s[7] == '-' {
			return s[:10]
		}
		return s
	case *PasswordField, *FileField:
		return ""
	}
	return export.Text(raw)
}

// optionKey 关联对象取其 id（或配置的键）
func optionKey(raw any, valueKey string) string {
	if m, ok := raw.(map[string]any); ok {
		if valueKey == "" {
			valueKey = "id"
		}
		return export.Text(m[valueKey])
	}
	return export.Text(raw)
}

func initialList(raw any, valueKey string) []string {
	items, ok := raw.([]any)
	if !ok {
		return lo.Compact([]string{optionKey(raw, valueKey)})
	}
	return lo.Map(items, func(item any, _ int) string {
		return optionKey(item, valueKey)
	})
}

func (f *Form) Mode() Mode {
	return f.mode
}

func (f *Form) Fields() FieldList {
	return f.fields
}

// Value 字段当前值
func (f *Form) Value(key string) string {
	return f.values[key]
}

// Selected 多选字段的值
func (f *Form) Selected(key string) []string {
	return f.multi[key]
}

// Set 更新单个字段并立即校验该字段
func (f *Form) Set(key, value string) []string {
	field, ok := f.fields.Get(key)
	if !ok {
		return nil
	}
	f.values[key] = value
	if msg := check(field, value, f.values); msg != "" {
		f.errors[key] = []string{msg}
	} else {
		delete(f.errors, key)
	}
	return f.errors[key]
}

// Bind 用提交的表单值整体覆盖，不做校验；未提交的复选框视为 false
func (f *Form) Bind(submitted map[string][]string) {
	for _, field := range f.fields.Visible(f.mode) {
		c := field.base()
		if c.ReadOnly || c.Hidden {
			continue
		}
		values := submitted[c.Key]
		if len(values) == 0 {
			values = submitted[c.Key+"[]"]
		}
		switch v := field.(type) {
		case *CheckboxField:
			f.values[c.Key] = strconv.FormatBool(len(values) > 0 && truthy(values[len(values)-1]))
		case *SelectField:
			if v.Multiple {
				f.multi[c.Key] = lo.Compact(values)
				f.values[c.Key] = strings.Join(f.multi[c.Key], ",")
				continue
			}
			f.values[c.Key] = last(values)
		default:
			f.values[c.Key] = last(values)
		}
	}
}

func last(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

// Validate 一次性校验所有可见、非隐藏字段（含只读字段），返回全部错误
func (f *Form) Validate() map[string][]string {
	f.errors = make(map[string][]string)
	for _, field := range f.fields.Visible(f.mode) {
		c := field.base()
		if c.Hidden {
			continue
		}
		if msg := check(field, f.values[c.Key], f.values); msg != "" {
			f.errors[c.Key] = []string{msg}
		}
	}
	return f.Errors()
}

// Errors 当前显示的错误
func (f *Form) Errors() map[string][]string {
	if len(f.errors) == 0 {
		return nil
	}
	return f.errors
}

// FieldErrors 单个字段的错误
func (f *Form) FieldErrors(key string) []string {
	return f.errors[key]
}

// MergeServerErrors 合并后端 422 返回的字段错误
func (f *Form) MergeServerErrors(serverErrors map[string][]string) {
	for key, messages := range serverErrors {
		if len(messages) == 0 {
			continue
		}
		f.errors[key] = lo.Uniq(append(f.errors[key], messages...))
	}
}

// Submit 本地校验失败时返回 ErrInvalid 且不调用 fn
func (f *Form) Submit(ctx context.Context, fn func(ctx context.Context, payload map[string]any) error) error {
	if errs := f.Validate(); len(errs) > 0 {
		return ErrInvalid
	}
	return fn(ctx, f.Payload())
}

// Payload 组装发往后端的请求体；只读、文件字段与空密码不提交
func (f *Form) Payload() map[string]any {
	payload := make(map[string]any)
	for _, field := range f.fields.Visible(f.mode) {
		c := field.base()
		if c.ReadOnly {
			continue
		}
		value := f.values[c.Key]
		switch v := field.(type) {
		case *FileField:
			continue
		case *PasswordField:
			if value == "" {
				continue
			}
			payload[c.Key] = value
		case *CheckboxField:
			payload[c.Key] = truthy(value)
		case *NumberField:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				payload[c.Key] = n
			} else {
				payload[c.Key] = nil
			}
		case *SelectField:
			if v.Multiple {
				payload[c.Key] = lo.Ternary(f.multi[c.Key] == nil, []string{}, f.multi[c.Key])
				continue
			}
			payload[c.Key] = lo.Ternary[any](value == "", nil, value)
		default:
			payload[c.Key] = value
		}
	}
	return payload
}

// SetOptions 设置从接口加载的下拉选项
func (f *Form) SetOptions(key string, options []Option) {
	f.options[key] = options
}

// Options 下拉选项：优先使用加载的选项，否则使用静态配置
func (f *Form) Options(s *SelectField) []Option {
	if opts, ok := f.options[s.Key]; ok {
		return opts
	}
	return s.Options
}

package form

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/ayxworxfr/go_backoffice/pkg/export"
	"github.com/samber/lo"
)

var viewTemplate = template.Must(template.New("view").Parse(
	`<table class="table table-sm view-table"><tbody>{{range .}}<tr><th scope="row">{{.Label}}</th><td>{{.Value}}</td></tr>{{end}}</tbody></table>`))

type viewRow struct {
	Label string
	Value string
}

// RenderView 只读的键值表，展示 view 模式下可见的字段
func RenderView(f *Form, record map[string]any) (template.HTML, error) {
	var rows []viewRow
	for _, field := range f.fields.Visible(ModeView) {
		c := field.base()
		if c.Hidden {
			continue
		}
		if _, ok := field.(*PasswordField); ok {
			continue
		}
		rows = append(rows, viewRow{Label: c.DisplayLabel(), Value: displayValue(f, field, record[c.Key])})
	}

	var buf bytes.Buffer
	if err := viewTemplate.Execute(&buf, rows); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func displayValue(f *Form, field Field, raw any) string {
	switch v := field.(type) {
	case *CheckboxField:
		if raw == nil {
			return ""
		}
		return lo.Ternary(truthy(initialValue(field, raw)), "Yes", "No")
	case *SelectField:
		return selectLabel(f.Options(v), v, raw)
	}
	return export.Text(raw)
}

// selectLabel 优先显示选项文字，其次显示关联对象的名称
func selectLabel(options []Option, s *SelectField, raw any) string {
	labelKey := lo.Ternary(s.OptionLabel == "", "name", s.OptionLabel)
	label := func(item any) string {
		key := optionKey(item, s.OptionValue)
		if opt, ok := lo.Find(options, func(o Option) bool { return o.Value == key }); ok {
			return opt.Label
		}
		if m, ok := item.(map[string]any); ok {
			if name := export.Text(m[labelKey]); name != "" {
				return name
			}
		}
		return key
	}
	if items, ok := raw.([]any); ok {
		labels := lo.Map(items, func(item any, _ int) string { return label(item) })
		return strings.Join(labels, ", ")
	}
	if raw == nil {
		return ""
	}
	return label(raw)
}

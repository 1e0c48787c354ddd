package form

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/samber/lo"
)

var fieldTemplates = template.Must(template.New("fields").Parse(`
{{define "label"}}<label for="field-{{.Key}}" class="form-label">{{.Label}}{{if .Required}} <span class="text-danger">*</span>{{end}}</label>{{end}}
{{define "help"}}{{if .Help}}<div class="form-text">{{.Help}}</div>{{end}}{{range .Errors}}<div class="invalid-feedback d-block">{{.}}</div>{{end}}{{end}}
{{define "attrs"}} id="field-{{.Key}}" name="{{.Key}}"{{if .Required}} required{{end}}{{if .ReadOnly}} readonly{{end}}{{if .Disabled}} disabled{{end}}{{if .MinLength}} minlength="{{.MinLength}}"{{end}}{{if .MaxLength}} maxlength="{{.MaxLength}}"{{end}}{{if .Pattern}} pattern="{{.Pattern}}"{{end}}{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{end}}
{{define "input"}}<div class="mb-3">{{template "label" .}}<input type="{{.Type}}" class="form-control{{if .Errors}} is-invalid{{end}}"{{template "attrs" .}} value="{{.Value}}"{{if .Min}} min="{{.Min}}"{{end}}{{if .Max}} max="{{.Max}}"{{end}}{{if .Step}} step="{{.Step}}"{{end}}>{{template "help" .}}</div>{{end}}
{{define "textarea"}}<div class="mb-3">{{template "label" .}}<textarea class="form-control{{if .Errors}} is-invalid{{end}}"{{template "attrs" .}} rows="{{.Rows}}">{{.Value}}</textarea>{{template "help" .}}</div>{{end}}
{{define "select"}}<div class="mb-3">{{template "label" .}}<select class="form-select{{if .Errors}} is-invalid{{end}}"{{template "attrs" .}}{{if .Multiple}} multiple{{end}}>{{if not .Multiple}}<option value="">{{if .Placeholder}}{{.Placeholder}}{{else}}Select...{{end}}</option>{{end}}{{range .Options}}<option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>{{end}}</select>{{template "help" .}}</div>{{end}}
{{define "checkbox"}}<div class="form-check mb-3"><input type="hidden" name="{{.Key}}" value="false"><input type="checkbox" class="form-check-input{{if .Errors}} is-invalid{{end}}" id="field-{{.Key}}" name="{{.Key}}" value="true"{{if .Checked}} checked{{end}}{{if or .ReadOnly .Disabled}} disabled{{end}}><label class="form-check-label" for="field-{{.Key}}">{{.Label}}{{if .Required}} <span class="text-danger">*</span>{{end}}</label>{{template "help" .}}</div>{{end}}
{{define "file"}}<div class="mb-3">{{template "label" .}}<input type="file" class="form-control{{if .Errors}} is-invalid{{end}}" id="field-{{.Key}}" name="{{.Key}}"{{if .Accept}} accept="{{.Accept}}"{{end}}{{if .Multiple}} multiple{{end}}{{if .Disabled}} disabled{{end}}>{{template "help" .}}</div>{{end}}
{{define "hidden"}}<input type="hidden" id="field-{{.Key}}" name="{{.Key}}" value="{{.Value}}">{{end}}
`))

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

type fieldView struct {
	Key         string
	Label       string
	Type        string
	Value       string
	Placeholder string
	Help        string
	Required    bool
	ReadOnly    bool
	Disabled    bool
	MinLength   int
	MaxLength   int
	Pattern     string
	Errors      []string
	Rows        int
	Min         string
	Max         string
	Step        string
	Options     []optionView
	Multiple    bool
	Checked     bool
	Accept      string
}

// Render 渲染当前模式下可见字段的输入框
func Render(f *Form) (template.HTML, error) {
	var buf bytes.Buffer
	for _, field := range f.fields.Visible(f.mode) {
		name, view := fieldViewOf(f, field)
		if err := fieldTemplates.ExecuteTemplate(&buf, name, view); err != nil {
			return "", fmt.Errorf("render field %s: %w", field.base().Key, err)
		}
	}
	return template.HTML(buf.String()), nil
}

// fieldViewOf 按字段变体选择模板；未知变体属于编程错误
func fieldViewOf(f *Form, field Field) (string, fieldView) {
	c := field.base()
	view := fieldView{
		Key:         c.Key,
		Label:       c.DisplayLabel(),
		Value:       f.values[c.Key],
		Placeholder: c.Placeholder,
		Help:        c.Help,
		Required:    c.Required,
		ReadOnly:    c.ReadOnly,
		Disabled:    f.mode == ModeView,
		MinLength:   c.MinLength,
		MaxLength:   c.MaxLength,
		Pattern:     c.Pattern,
		Errors:      f.errors[c.Key],
	}

	var name string
	switch v := field.(type) {
	case *TextField:
		name, view.Type = "input", "text"
	case *EmailField:
		name, view.Type = "input", "email"
	case *PasswordField:
		name, view.Type = "input", "password"
		view.Value = ""
	case *NumberField:
		name, view.Type = "input", "number"
		view.Step = v.Step
		if v.Min != nil {
			view.Min = formatFloat(*v.Min)
		}
		if v.Max != nil {
			view.Max = formatFloat(*v.Max)
		}
	case *DateField:
		name, view.Type = "input", "date"
	case *TextareaField:
		name = "textarea"
		view.Rows = lo.Ternary(v.Rows > 0, v.Rows, 3)
	case *SelectField:
		name = "select"
		view.Multiple = v.Multiple
		selected := lo.Ternary(v.Multiple, f.multi[c.Key], []string{view.Value})
		for _, opt := range f.Options(v) {
			view.Options = append(view.Options, optionView{
				Value:    opt.Value,
				Label:    opt.Label,
				Selected: lo.Contains(selected, opt.Value),
			})
		}
	case *CheckboxField:
		name = "checkbox"
		view.Checked = truthy(view.Value)
	case *FileField:
		name = "file"
		view.Accept = v.Accept
		view.Multiple = v.Multiple
	default:
		panic(fmt.Sprintf("form: unsupported field type %T", field))
	}

	if c.Hidden {
		name = "hidden"
	}
	return name, view
}

package form

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brandFields() FieldList {
	return MustFieldList(
		&TextField{Common: Common{Key: "name", Required: true, MaxLength: 10}},
		&EmailField{Common: Common{Key: "contact_email", Label: "Email"}},
		&SelectField{Common: Common{Key: "company_id", Label: "Company"}, OptionsEndpoint: "/configure/companies"},
		&CheckboxField{Common: Common{Key: "active"}},
		&PasswordField{Common: Common{Key: "secret", Modes: []Mode{ModeCreate}}},
		&TextField{Common: Common{Key: "slug", ReadOnly: true}},
	)
}

func TestNewFieldList(t *testing.T) {
	_, err := NewFieldList(&TextField{Common: Common{Key: "a"}}, &NumberField{Common: Common{Key: "a"}})
	assert.ErrorContains(t, err, `duplicate field key "a"`)

	_, err = NewFieldList(&TextField{})
	assert.ErrorContains(t, err, "empty key")

	list, err := NewFieldList(&TextField{Common: Common{Key: "a"}}, &FileField{Common: Common{Key: "logo"}})
	require.NoError(t, err)
	assert.True(t, list.HasFiles())
	assert.Panics(t, func() { MustFieldList(&TextField{}, &TextField{}) })
}

// 必填字段为空时报错并阻止提交，填写后错误消失
func TestForm_RequiredBlocksSubmit(t *testing.T) {
	f := New(brandFields(), ModeCreate, nil)

	called := false
	err := f.Submit(context.Background(), func(context.Context, map[string]any) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.False(t, called)
	assert.Equal(t, []string{"Name is required."}, f.FieldErrors("name"))

	assert.Empty(t, f.Set("name", "Acme"))
	assert.Empty(t, f.FieldErrors("name"))

	err = f.Submit(context.Background(), func(_ context.Context, payload map[string]any) error {
		called = true
		assert.Equal(t, "Acme", payload["name"])
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestCheck_RuleOrder(t *testing.T) {
	field := &TextField{Common: Common{
		Key:       "code",
		Required:  true,
		MinLength: 3,
		MaxLength: 5,
		Pattern:   "[A-Z]+",
		Validator: func(value string, _ map[string]string) string {
			if value == "NOPE" {
				return "Code is reserved."
			}
			return ""
		},
		Expr:        `value != "BAD"`,
		ExprMessage: "Code is blocked.",
	}}

	tests := []struct {
		value string
		want  string
	}{
		{"", "Code is required."},
		{"  ", "Code is required."},
		{"ab", "Code must be at least 3 characters."},
		{"abcdefg", "Code may not be greater than 5 characters."},
		{"abcd", "Code format is invalid."},
		{"NOPE", "Code is reserved."},
		{"BAD", "Code is blocked."},
		{"GOOD", ""},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, check(field, tt.value, nil))
		})
	}
}

func TestCheck_Types(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value string
		want  string
	}{
		{"email ok", &EmailField{Common: Common{Key: "email"}}, "a@b.co", ""},
		{"email bad", &EmailField{Common: Common{Key: "email"}}, "nope", "Email must be a valid email address."},
		{"optional empty skips rules", &EmailField{Common: Common{Key: "email", MinLength: 5}}, "", ""},
		{"number bad", &NumberField{Common: Common{Key: "qty"}}, "x", "Qty must be a number."},
		{"number min", &NumberField{Common: Common{Key: "qty"}, Min: Float(1)}, "0", "Qty must be at least 1."},
		{"number max", &NumberField{Common: Common{Key: "qty"}, Max: Float(9.5)}, "10", "Qty may not be greater than 9.5."},
		{"date bad", &DateField{Common: Common{Key: "order_date"}}, "2024-13-01", "Order Date is not a valid date."},
		{"date ok", &DateField{Common: Common{Key: "order_date"}}, "2024-02-29", ""},
		{"checkbox required", &CheckboxField{Common: Common{Key: "terms", Required: true}}, "false", "Terms is required."},
		{"checkbox checked", &CheckboxField{Common: Common{Key: "terms", Required: true}}, "true", ""},
		{"static select", &SelectField{Common: Common{Key: "status"}, Options: []Option{{"open", "Open"}}}, "closed", "The selected status is invalid."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, check(tt.field, tt.value, nil))
		})
	}
}

func TestCheck_ExprSeesOtherValues(t *testing.T) {
	field := &PasswordField{Common: Common{
		Key:         "password_confirmation",
		Expr:        "value == values.password",
		ExprMessage: "Passwords do not match.",
	}}
	assert.Equal(t, "", check(field, "s3cret", map[string]string{"password": "s3cret"}))
	assert.Equal(t, "Passwords do not match.", check(field, "other", map[string]string{"password": "s3cret"}))

	assert.NoError(t, CompileExpr("len(value) > 2"))
	assert.Error(t, CompileExpr("value +"))
}

func TestForm_InitialValues(t *testing.T) {
	record := map[string]any{
		"name":       "Acme",
		"company_id": map[string]any{"id": float64(7), "name": "Globex"},
		"active":     float64(1),
		"secret":     "should-not-show",
	}
	f := New(MustFieldList(
		&TextField{Common: Common{Key: "name"}},
		&SelectField{Common: Common{Key: "company_id"}},
		&CheckboxField{Common: Common{Key: "active"}},
		&PasswordField{Common: Common{Key: "secret"}},
		&TextField{Common: Common{Key: "country", Default: "US"}},
		&DateField{Common: Common{Key: "since"}},
	), ModeEdit, record)

	assert.Equal(t, "Acme", f.Value("name"))
	assert.Equal(t, "7", f.Value("company_id"))
	assert.Equal(t, "true", f.Value("active"))
	assert.Equal(t, "", f.Value("secret"))
	assert.Equal(t, "US", f.Value("country"))
	assert.Equal(t, "", f.Value("since"))

	f = New(MustFieldList(&DateField{Common: Common{Key: "since"}}), ModeEdit, map[string]any{"since": "2024-05-01T10:00:00Z"})
	assert.Equal(t, "2024-05-01", f.Value("since"))
}

func TestForm_BindAndPayload(t *testing.T) {
	fields := MustFieldList(
		&TextField{Common: Common{Key: "name", Required: true}},
		&NumberField{Common: Common{Key: "qty"}},
		&CheckboxField{Common: Common{Key: "active"}},
		&SelectField{Common: Common{Key: "roles"}, Multiple: true},
		&SelectField{Common: Common{Key: "company_id"}},
		&PasswordField{Common: Common{Key: "password"}},
		&FileField{Common: Common{Key: "logo"}},
		&TextField{Common: Common{Key: "slug", ReadOnly: true}},
	)
	f := New(fields, ModeEdit, map[string]any{"slug": "acme", "active": true})
	f.Bind(map[string][]string{
		"name":    {"Acme"},
		"qty":     {"3"},
		"roles[]": {"admin", "", "editor"},
		"slug":    {"hacked"},
	})

	assert.Empty(t, f.Validate())
	assert.Equal(t, map[string]any{
		"name":       "Acme",
		"qty":        float64(3),
		"active":     false,
		"roles":      []string{"admin", "editor"},
		"company_id": nil,
	}, f.Payload())
	assert.Equal(t, "acme", f.Value("slug"))
}

func TestForm_ValidateIncludesReadOnly(t *testing.T) {
	fields := MustFieldList(
		&TextField{Common: Common{Key: "code", ReadOnly: true, Required: true}},
		&TextField{Common: Common{Key: "secret", Hidden: true, Required: true}},
	)

	f := New(fields, ModeEdit, nil)
	assert.Equal(t, map[string][]string{"code": {"Code is required."}}, f.Validate())

	f = New(fields, ModeEdit, map[string]any{"code": "PO-1"})
	assert.Empty(t, f.Validate())
}

func TestForm_ModesAndHidden(t *testing.T) {
	f := New(brandFields(), ModeEdit, map[string]any{"name": "Acme"})
	payload := f.Payload()
	_, hasSecret := payload["secret"]
	assert.False(t, hasSecret)
	_, hasSlug := payload["slug"]
	assert.False(t, hasSlug)
}

func TestForm_MergeServerErrors(t *testing.T) {
	f := New(brandFields(), ModeCreate, nil)
	f.Validate()
	f.MergeServerErrors(map[string][]string{
		"name":          {"The name has already been taken.", "Name is required."},
		"contact_email": {"Invalid domain."},
		"empty":         nil,
	})
	assert.Equal(t, []string{"Name is required.", "The name has already been taken."}, f.FieldErrors("name"))
	assert.Equal(t, []string{"Invalid domain."}, f.FieldErrors("contact_email"))
	assert.NotContains(t, f.Errors(), "empty")
}

func TestRender(t *testing.T) {
	f := New(brandFields(), ModeCreate, map[string]any{"name": "<b>Acme</b>"})
	f.SetOptions("company_id", []Option{{Value: "1", Label: "Globex"}, {Value: "2", Label: "Initech"}})
	f.Set("company_id", "2")
	f.Set("contact_email", "bad")

	html, err := Render(f)
	require.NoError(t, err)
	out := string(html)

	assert.Contains(t, out, `<label for="field-name" class="form-label">Name <span class="text-danger">*</span></label>`)
	assert.Contains(t, out, `value="&lt;b&gt;Acme&lt;/b&gt;"`)
	assert.Contains(t, out, `maxlength="10"`)
	assert.Contains(t, out, `type="email"`)
	assert.Contains(t, out, "Email must be a valid email address.")
	assert.Contains(t, out, `<option value="2" selected>Initech</option>`)
	assert.Contains(t, out, `type="checkbox"`)
	assert.Contains(t, out, `type="password"`)
	assert.Contains(t, out, `name="slug" readonly`)

	// secret 只在创建模式显示
	edit, err := Render(New(brandFields(), ModeEdit, nil))
	require.NoError(t, err)
	assert.NotContains(t, string(edit), `name="secret"`)

	view, err := Render(New(brandFields(), ModeView, nil))
	require.NoError(t, err)
	assert.Contains(t, string(view), " disabled")
}

type bogusField struct {
	Common
}

func TestRender_UnknownVariantPanics(t *testing.T) {
	f := New(FieldList{&bogusField{Common: Common{Key: "x"}}}, ModeCreate, nil)
	assert.Panics(t, func() { _, _ = Render(f) })
}

func TestRenderView(t *testing.T) {
	fields := MustFieldList(
		&TextField{Common: Common{Key: "name"}},
		&SelectField{Common: Common{Key: "company"}},
		&SelectField{Common: Common{Key: "roles"}, Multiple: true},
		&CheckboxField{Common: Common{Key: "active"}},
		&PasswordField{Common: Common{Key: "password"}},
		&TextField{Common: Common{Key: "internal", Modes: []Mode{ModeEdit}}},
	)
	record := map[string]any{
		"name":    "Acme & Co",
		"company": map[string]any{"id": float64(1), "name": "Globex"},
		"roles":   []any{map[string]any{"id": "a", "name": "Admin"}, map[string]any{"id": "e", "name": "Editor"}},
		"active":  false,
	}
	f := New(fields, ModeView, record)
	html, err := RenderView(f, record)
	require.NoError(t, err)
	out := string(html)

	assert.Contains(t, out, "<th scope=\"row\">Name</th><td>Acme &amp; Co</td>")
	assert.Contains(t, out, "<td>Globex</td>")
	assert.Contains(t, out, "<td>Admin, Editor</td>")
	assert.Contains(t, out, "<td>No</td>")
	assert.NotContains(t, out, "Password")
	assert.NotContains(t, out, "Internal")
}

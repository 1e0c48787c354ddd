package handler

import (
	"strings"

	"github.com/ayxworxfr/go_backoffice/internal/form"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/pkg/export"
	"github.com/ettle/strcase"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// col 列名由字段路径推导，例如 company.name -> Company Name
func col(selector string) export.Column {
	return export.Column{
		Name:     strcase.ToCase(strings.ReplaceAll(selector, ".", "_"), strcase.TitleCase, ' '),
		Selector: selector,
	}
}

func cols(selectors ...string) []export.Column {
	return lo.Map(selectors, func(s string, _ int) export.Column { return col(s) })
}

// names 取出关联列表中每一项的 name
func names(key string) export.Accessor {
	return func(row export.Row) (any, error) {
		items, ok := row[key].([]any)
		if !ok {
			return nil, nil
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case map[string]any:
				out = append(out, export.Text(v["name"]))
			case string:
				out = append(out, v)
			default:
				return nil, errors.Errorf("unexpected %s item %T", key, item)
			}
		}
		return strings.Join(out, ", "), nil
	}
}

// orderTotal 后端给出 total 时直接使用，否则按明细计算
func orderTotal(row export.Row) (any, error) {
	if total := export.Text(row["total"]); total != "" {
		return total, nil
	}
	if _, ok := row[service.LinesKey]; !ok {
		return nil, errors.New("order has no lines")
	}
	return service.FormOrderTotal(service.RecordLineForms(row)), nil
}

// Resources 控制台中的全部资源页
func Resources() []*Resource {
	return []*Resource{
		{
			Key:        "brands",
			Title:      "Brands",
			Singular:   "Brand",
			Path:       "/brands",
			Endpoint:   "/configure/brands",
			SoftDelete: true,
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 255}},
				&form.TextareaField{Common: form.Common{Key: "description", MaxLength: 1000}, Rows: 3},
				&form.FileField{Common: form.Common{Key: "logo", Modes: []form.Mode{form.ModeCreate, form.ModeEdit},
					Help: "PNG or JPEG, shown in the catalog."}, Accept: "image/png,image/jpeg"},
				&form.CheckboxField{Common: form.Common{Key: "active", Default: "true"}},
			),
			Columns: append(cols("id", "name", "description", "active"), col("created_at")),
		},
		{
			Key:        "companies",
			Title:      "Companies",
			Singular:   "Company",
			Path:       "/companies",
			Endpoint:   "/configure/companies",
			SoftDelete: true,
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 255}},
				&form.TextField{Common: form.Common{Key: "tax_id", Label: "Tax ID", MaxLength: 32,
					Pattern: `^[A-Z0-9-]+$`, PatternMessage: "Tax ID may contain only capital letters, digits and dashes"}},
				&form.EmailField{Common: form.Common{Key: "email"}},
				&form.TextField{Common: form.Common{Key: "phone", MaxLength: 32}},
				&form.TextareaField{Common: form.Common{Key: "address", MaxLength: 500}, Rows: 2},
			),
			Columns: []export.Column{col("id"), col("name"), {Name: "Tax ID", Selector: "tax_id"}, col("email"), col("phone")},
		},
		{
			Key:        "suppliers",
			Title:      "Suppliers",
			Singular:   "Supplier",
			Path:       "/suppliers",
			Endpoint:   "/configure/suppliers",
			SoftDelete: true,
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 255}},
				&form.SelectField{Common: form.Common{Key: "company_id", Label: "Company", Required: true},
					OptionsEndpoint: "/configure/companies", OptionLabel: "name"},
				&form.EmailField{Common: form.Common{Key: "email", Required: true}},
				&form.TextField{Common: form.Common{Key: "phone", MaxLength: 32}},
			),
			Columns: cols("id", "name", "company.name", "email", "phone"),
		},
		{
			Key:        "categories",
			Title:      "Categories",
			Singular:   "Category",
			Path:       "/categories",
			Endpoint:   "/configure/categories",
			SoftDelete: true,
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 255}},
				&form.SelectField{Common: form.Common{Key: "parent_id", Label: "Parent category"},
					OptionsEndpoint: "/configure/categories", OptionLabel: "name"},
				&form.TextareaField{Common: form.Common{Key: "description", MaxLength: 1000}, Rows: 3},
			),
			Columns: cols("id", "name", "parent.name", "description"),
		},
		{
			Key:        "models",
			Title:      "Models",
			Singular:   "Model",
			Path:       "/models",
			Endpoint:   "/configure/models",
			SoftDelete: true,
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 255}},
				&form.SelectField{Common: form.Common{Key: "brand_id", Label: "Brand", Required: true},
					OptionsEndpoint: "/configure/brands", OptionLabel: "name"},
				&form.SelectField{Common: form.Common{Key: "category_id", Label: "Category", Required: true},
					OptionsEndpoint: "/configure/categories", OptionLabel: "name"},
				&form.NumberField{Common: form.Common{Key: "price", Required: true}, Min: form.Float(0), Step: "0.01"},
				&form.DateField{Common: form.Common{Key: "release_date"}},
			),
			Columns: cols("id", "name", "brand.name", "category.name", "price", "release_date"),
		},
		{
			Key:      "roles",
			Title:    "Roles",
			Singular: "Role",
			Path:     "/roles",
			Endpoint: "/roles",
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 64,
					Pattern: `^[a-z][a-z0-9_-]*$`, PatternMessage: "Name must be lowercase, e.g. sales-manager"}},
				&form.TextareaField{Common: form.Common{Key: "description", MaxLength: 500}, Rows: 2},
				&form.SelectField{Common: form.Common{Key: "permissions"}, Multiple: true,
					OptionsEndpoint: "/permissions", OptionLabel: "name"},
			),
			Columns: []export.Column{col("id"), col("name"), col("description"), {Name: "Permissions", Accessor: names("permissions")}},
		},
		{
			Key:      "permissions",
			Title:    "Permissions",
			Singular: "Permission",
			Path:     "/permissions",
			Endpoint: "/permissions",
			Roles:    []string{"admin"},
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 128,
					Pattern: `^[a-z_-]+\.[a-z_]+$`, PatternMessage: "Use the resource.action form, e.g. brands.view"}},
				&form.TextareaField{Common: form.Common{Key: "description", MaxLength: 500}, Rows: 2},
			),
			Columns: cols("id", "name", "description"),
		},
		{
			Key:      "users",
			Title:    "Users",
			Singular: "User",
			Path:     "/users",
			Endpoint: "/users",
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "name", Required: true, MaxLength: 255}},
				&form.EmailField{Common: form.Common{Key: "email", Required: true, MaxLength: 255}},
				&form.PasswordField{Common: form.Common{Key: "password", Modes: []form.Mode{form.ModeCreate}, Required: true, MinLength: 8}},
				&form.PasswordField{Common: form.Common{Key: "new_password", Label: "New password", Modes: []form.Mode{form.ModeEdit},
					MinLength: 8, Help: "Leave empty to keep the current password."}},
				&form.SelectField{Common: form.Common{Key: "roles"}, Multiple: true,
					OptionsEndpoint: "/roles", OptionLabel: "name"},
				&form.FileField{Common: form.Common{Key: "avatar", Modes: []form.Mode{form.ModeCreate, form.ModeEdit}}, Accept: "image/*"},
			),
			Columns: []export.Column{col("id"), col("name"), col("email"), {Name: "Roles", Accessor: names("roles")}},
		},
		{
			Key:        "purchase-orders",
			Title:      "Purchase Orders",
			Singular:   "Purchase order",
			Path:       "/purchase-orders",
			Endpoint:   "/purchase-orders",
			SoftDelete: true,
			Fields: form.MustFieldList(
				&form.TextField{Common: form.Common{Key: "number", ReadOnly: true, Modes: []form.Mode{form.ModeEdit, form.ModeView}}},
				&form.SelectField{Common: form.Common{Key: "supplier_id", Label: "Supplier", Required: true},
					OptionsEndpoint: "/configure/suppliers", OptionLabel: "name"},
				&form.DateField{Common: form.Common{Key: "order_date", Required: true}},
				&form.SelectField{Common: form.Common{Key: "status", Default: "draft"}, Options: []form.Option{
					{Value: "draft", Label: "Draft"},
					{Value: "submitted", Label: "Submitted"},
					{Value: "received", Label: "Received"},
				}},
				&form.TextareaField{Common: form.Common{Key: "notes", MaxLength: 2000}, Rows: 3},
			),
			Columns: []export.Column{col("number"), col("supplier.name"), col("order_date"), col("status"),
				{Name: "Total", Accessor: orderTotal}},
			Lines: &LineEditor{ProductEndpoint: "/configure/models", ProductLabel: "name", BlankRows: 2},
		},
	}
}

package views

import (
	"html/template"

	"github.com/ayxworxfr/go_backoffice/internal/table"
)

// ListView 列表页
type ListView struct {
	Table          *table.DataTable
	Rows           []RowView
	CanCreate      bool
	CanEdit        bool
	CanDelete      bool
	SoftDelete     bool
	DebounceMillis int64
	Modal          *ModalView
}

// RowView 表格中的一行
type RowView struct {
	ID      string
	Trashed bool
	Cells   []table.Cell
}

// ModalView 同一时刻最多一个弹窗
type ModalView struct {
	Title     string
	Action    string
	CloseURL  string
	Message   string
	Body      template.HTML
	ReadOnly  bool
	Multipart bool
}

// AuthView 登录、注册页
type AuthView struct {
	Message string
	Fields  template.HTML
	// Next 登录成功后返回的站内路径
	Next string
}

// AlertView 阻塞式提示，确认后返回 Back
type AlertView struct {
	Message string
	Back    string
}

// LinesView 采购单明细编辑区
type LinesView struct {
	Lines    []LineView
	Products []ProductOption
	Total    string
	ReadOnly bool
	Errors   []string
}

// LineView 一行明细；Index 对应表单字段 lines[Index][...]
type LineView struct {
	Index        int
	ProductID    string
	ProductLabel string
	Quantity     string
	UnitPrice    string
	DeliveryDate string
	Total        string
	Errors       map[string][]string
}

// ProductOption 明细中的产品选项
type ProductOption struct {
	Value string
	Label string
}

package table

import (
	"github.com/ayxworxfr/go_backoffice/pkg/export"
)

// DataTable 列表页的视图模型：加载器状态 + 列定义 + 导出与搜索
type DataTable struct {
	Key       string
	Title     string
	BasePath  string
	Columns   []export.Column
	State     State
	Formats   []export.Format
	PageSizes []int
}

// Cell 单元格文本，取值失败时为空
type Cell struct {
	Column string
	Text   string
}

// NewDataTable 组装视图模型
func NewDataTable(key, title, basePath string, columns []export.Column, state State, pageSizes []int) *DataTable {
	return &DataTable{
		Key:       key,
		Title:     title,
		BasePath:  basePath,
		Columns:   columns,
		State:     state,
		Formats:   export.Formats,
		PageSizes: pageSizes,
	}
}

// Cells 按列顺序输出一行
func (t *DataTable) Cells(row Row) []Cell {
	cells := make([]Cell, len(t.Columns))
	for i, col := range t.Columns {
		cells[i] = Cell{Column: col.Name, Text: export.Text(col.Value(row))}
	}
	return cells
}

func (t *DataTable) HasPrev() bool {
	return t.State.Query.Page > 1
}

func (t *DataTable) HasNext() bool {
	return t.State.Query.Page < t.State.TotalPages()
}

func (t *DataTable) PrevPage() int {
	return t.State.Query.Page - 1
}

func (t *DataTable) NextPage() int {
	return t.State.Query.Page + 1
}

// From 当前页第一条的序号，无数据时为 0
func (t *DataTable) From() int {
	if len(t.State.Data) == 0 {
		return 0
	}
	return (t.State.Query.Page-1)*t.State.Query.PerPage + 1
}

// To 当前页最后一条的序号
func (t *DataTable) To() int {
	if len(t.State.Data) == 0 {
		return 0
	}
	return t.From() + len(t.State.Data) - 1
}

// PageWindow 分页条上显示的页码，以当前页为中心最多 width 个
func (t *DataTable) PageWindow(width int) []int {
	total := t.State.TotalPages()
	current := t.State.Query.Page
	if width <= 0 || width > total {
		width = total
	}
	start := current - width/2
	if start < 1 {
		start = 1
	}
	if start+width-1 > total {
		start = total - width + 1
	}
	pages := make([]int, width)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}

// Empty 没有数据且不在加载中
func (t *DataTable) Empty() bool {
	return len(t.State.Data) == 0 && !t.State.Loading()
}

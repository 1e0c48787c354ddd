// Package export 将表格当前页的数据导出为 CSV、XLSX、PDF、剪贴板文本或打印页面。
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ettle/strcase"
)

// Format 导出格式
type Format string

const (
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatPDF   Format = "pdf"
	FormatCopy  Format = "copy"
	FormatPrint Format = "print"
)

// Formats 全部支持的格式，按按钮展示顺序排列
var Formats = []Format{FormatCopy, FormatCSV, FormatXLSX, FormatPDF, FormatPrint}

var (
	ErrEmptyDataset      = errors.New("no data available to export")
	ErrNoColumns         = errors.New("no columns to export")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Row 一行记录
type Row = map[string]any

// Accessor 自定义取值函数，返回错误时该单元格为空
type Accessor func(Row) (any, error)

// Column 导出列：优先使用 Accessor，否则按 Selector 取字段
type Column struct {
	Name     string
	Selector string
	Accessor Accessor
}

// File 导出结果
type File struct {
	ContentType string
	FileName    string
	Body        []byte
	// Inline 为 true 时在浏览器中直接展示而不是下载
	Inline bool
}

// ParseFormat 解析格式名，大小写不敏感
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Label 格式按钮文案
func (f Format) Label() string {
	switch f {
	case FormatCopy:
		return "Copy"
	case FormatPrint:
		return "Print"
	default:
		return strings.ToUpper(string(f))
	}
}

// Export 按格式导出；title 用于文件名与文档标题
func Export(format Format, title string, columns []Column, rows []Row) (*File, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	base := FileBaseName(title)
	switch format {
	case FormatCSV:
		body := CSV(columns, rows)
		return &File{ContentType: "text/csv; charset=utf-8", FileName: base + ".csv", Body: body}, nil
	case FormatXLSX:
		body, err := XLSX(columns, rows)
		if err != nil {
			return nil, err
		}
		return &File{ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", FileName: base + ".xlsx", Body: body}, nil
	case FormatPDF:
		body, err := PDF(title, columns, rows)
		if err != nil {
			return nil, err
		}
		return &File{ContentType: "application/pdf", FileName: base + ".pdf", Body: body}, nil
	case FormatCopy:
		return &File{ContentType: "text/plain; charset=utf-8", Body: TSV(columns, rows), Inline: true}, nil
	case FormatPrint:
		body, err := PrintHTML(title, columns, rows)
		if err != nil {
			return nil, err
		}
		return &File{ContentType: "text/html; charset=utf-8", Body: body, Inline: true}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// FileBaseName 由标题生成文件名，带日期
func FileBaseName(title string) string {
	name := strcase.ToKebab(title)
	if name == "" {
		name = "export"
	}
	return name + "-" + time.Now().Format("20060102")
}

// Value 解析单元格的原始值；取值失败返回 nil
func (c Column) Value(row Row) any {
	if c.Accessor != nil {
		v, err := c.Accessor(row)
		if err != nil {
			return nil
		}
		return v
	}
	return Lookup(row, c.Selector)
}

// Lookup 先按完整键名取值，再按 a.b.c 逐层查找
func Lookup(row Row, selector string) any {
	if selector == "" || row == nil {
		return nil
	}
	if v, ok := row[selector]; ok {
		return v
	}
	var cur any = row
	for _, part := range strings.Split(selector, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

// Text 将单元格值转为文本；非基础类型输出 JSON
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(val)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		// 原样保留 < > &，CSV 与剪贴板输出不是 HTML
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}

// matrix 生成表头与单元格文本
func matrix(columns []Column, rows []Row) ([]string, [][]string) {
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}
	body := make([][]string, len(rows))
	for r, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = Text(col.Value(row))
		}
		body[r] = cells
	}
	return header, body
}

package export

import (
	"bytes"
	"html/template"
	"strings"
)

// CSV 每个单元格都加双引号，内部引号加倍，行以 CRLF 结束
func CSV(columns []Column, rows []Row) []byte {
	header, body := matrix(columns, rows)

	var buf bytes.Buffer
	writeCSVRecord(&buf, header)
	for _, cells := range body {
		writeCSVRecord(&buf, cells)
	}
	return buf.Bytes()
}

func writeCSVRecord(buf *bytes.Buffer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

var tsvReplacer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

// TSV 剪贴板文本，制表符分隔，可直接粘贴到表格软件
func TSV(columns []Column, rows []Row) []byte {
	header, body := matrix(columns, rows)

	var buf bytes.Buffer
	writeTSVRecord(&buf, header)
	for _, cells := range body {
		writeTSVRecord(&buf, cells)
	}
	return buf.Bytes()
}

func writeTSVRecord(buf *bytes.Buffer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			buf.WriteByte('\t')
		}
		buf.WriteString(tsvReplacer.Replace(cell))
	}
	buf.WriteByte('\n')
}

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 16px; }
h1 { font-size: 16px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #999; padding: 4px 6px; text-align: left; vertical-align: top; }
th { background: #eee; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<table>
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Body}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
<script>window.onload = function () { window.print(); };</script>
</body>
</html>
`))

// PrintHTML 生成打开后自动调用打印的独立页面
func PrintHTML(title string, columns []Column, rows []Row) ([]byte, error) {
	header, body := matrix(columns, rows)

	var buf bytes.Buffer
	err := printTemplate.Execute(&buf, map[string]any{
		"Title":  title,
		"Header": header,
		"Body":   body,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

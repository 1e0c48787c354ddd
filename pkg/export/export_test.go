package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSV_QuotesEveryCell(t *testing.T) {
	columns := []Column{{Name: "Name", Selector: "name"}}

	out := CSV(columns, []Row{{"name": "A"}})
	assert.Equal(t, "\"Name\"\r\n\"A\"\r\n", string(out))

	out = CSV(columns, []Row{{"name": `say "hi"`}})
	assert.Equal(t, "\"Name\"\r\n\"say \"\"hi\"\"\"\r\n", string(out))
}

func TestCSV_MultipleColumns(t *testing.T) {
	columns := []Column{
		{Name: "ID", Selector: "id"},
		{Name: "Brand", Selector: "brand.name"},
		{Name: "Tags", Selector: "tags"},
		{Name: "Active", Selector: "active"},
	}
	rows := []Row{{
		"id":     float64(7),
		"brand":  map[string]any{"name": "Acme, Inc"},
		"tags":   []any{"a", "b"},
		"active": true,
	}}

	out := CSV(columns, rows)
	lines := strings.Split(strings.TrimSuffix(string(out), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"ID","Brand","Tags","Active"`, lines[0])
	assert.Equal(t, `"7","Acme, Inc","[""a"",""b""]","true"`, lines[1])
}

func TestColumn_FailingAccessorYieldsEmptyCell(t *testing.T) {
	columns := []Column{
		{Name: "Broken", Accessor: func(Row) (any, error) { return nil, errors.New("missing relation") }},
		{Name: "Name", Selector: "name"},
	}

	out := CSV(columns, []Row{{"name": "A"}, {"name": "B"}})
	assert.Equal(t, "\"Broken\",\"Name\"\r\n\"\",\"A\"\r\n\"\",\"B\"\r\n", string(out))
}

func TestText(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"float", 1.5, "1.5"},
		{"whole float", float64(3), "3"},
		{"int", 42, "42"},
		{"bool", false, "false"},
		{"time", ts, "2024-05-01T10:00:00Z"},
		{"map", map[string]any{"a": 1}, `{"a":1}`},
		{"slice", []string{"x", "y"}, `["x","y"]`},
		{"html characters", map[string]any{"name": "A & B <c>"}, `{"name":"A & B <c>"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestExport_EmptyDataset(t *testing.T) {
	columns := []Column{{Name: "Name", Selector: "name"}}
	for _, f := range Formats {
		_, err := Export(f, "Brands", columns, nil)
		assert.ErrorIs(t, err, ErrEmptyDataset, f)
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = Export(Format("docx"), "Brands", []Column{{Name: "Name", Selector: "name"}}, []Row{{"name": "A"}})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExport_Formats(t *testing.T) {
	columns := []Column{{Name: "Name", Selector: "name"}, {Name: "Price", Selector: "price"}}
	rows := []Row{{"name": "<b>Widget</b>", "price": 9.5}, {"name": "Gadget", "price": float64(12)}}

	t.Run("csv", func(t *testing.T) {
		file, err := Export(FormatCSV, "Purchase Orders", columns, rows)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(file.FileName, "purchase-orders-"))
		assert.True(t, strings.HasSuffix(file.FileName, ".csv"))
		assert.False(t, file.Inline)
	})

	t.Run("xlsx", func(t *testing.T) {
		file, err := Export(FormatXLSX, "Brands", columns, rows)
		require.NoError(t, err)

		book, err := excelize.OpenReader(bytes.NewReader(file.Body))
		require.NoError(t, err)
		defer book.Close()

		header, err := book.GetCellValue(sheetName, "A1")
		require.NoError(t, err)
		assert.Equal(t, "Name", header)
		price, err := book.GetCellValue(sheetName, "B2")
		require.NoError(t, err)
		assert.Equal(t, "9.5", price)
	})

	t.Run("pdf", func(t *testing.T) {
		file, err := Export(FormatPDF, "Brands", columns, rows)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF-")))
		assert.Equal(t, "application/pdf", file.ContentType)
	})

	t.Run("copy", func(t *testing.T) {
		file, err := Export(FormatCopy, "Brands", columns, rows)
		require.NoError(t, err)
		assert.True(t, file.Inline)
		assert.Equal(t, "Name\tPrice\n<b>Widget</b>\t9.5\nGadget\t12\n", string(file.Body))
	})

	t.Run("print", func(t *testing.T) {
		file, err := Export(FormatPrint, "Brands", columns, rows)
		require.NoError(t, err)
		body := string(file.Body)
		assert.Contains(t, body, "window.print()")
		assert.Contains(t, body, "&lt;b&gt;Widget&lt;/b&gt;")
		assert.Contains(t, body, "<th>Price</th>")
	})
}

func TestPDF_ManyRowsPaginates(t *testing.T) {
	columns := []Column{{Name: "Name", Selector: "name"}}
	rows := make([]Row, 120)
	for i := range rows {
		rows[i] = Row{"name": strings.Repeat("long text ", 30)}
	}
	out, err := PDF("Stress", columns, rows)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

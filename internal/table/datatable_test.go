package table

import (
	"errors"
	"testing"

	"github.com/ayxworxfr/go_backoffice/pkg/export"
	"github.com/stretchr/testify/assert"
)

func TestDataTable(t *testing.T) {
	columns := []export.Column{
		{Name: "Name", Selector: "name"},
		{Name: "Company", Selector: "company.name"},
		{Name: "Broken", Accessor: func(export.Row) (any, error) { return nil, errors.New("x") }},
	}
	state := State{
		Query: Query{Page: 2, PerPage: 10},
		Data:  []Row{{"name": "A", "company": map[string]any{"name": "Acme"}}},
		Total: 45,
		Phase: Loaded,
	}
	dt := NewDataTable("brands", "Brands", "/configure/brands", columns, state, []int{10, 25})

	assert.Equal(t, []Cell{{"Name", "A"}, {"Company", "Acme"}, {"Broken", ""}}, dt.Cells(state.Data[0]))
	assert.True(t, dt.HasPrev())
	assert.True(t, dt.HasNext())
	assert.Equal(t, 11, dt.From())
	assert.Equal(t, 11, dt.To())
	assert.Equal(t, []int{1, 2, 3}, dt.PageWindow(3))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, dt.PageWindow(10))
	assert.False(t, dt.Empty())

	dt.State.Query.Page = 5
	assert.False(t, dt.HasNext())
	assert.Equal(t, []int{3, 4, 5}, dt.PageWindow(3))
}

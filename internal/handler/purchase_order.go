package handler

import (
	"fmt"
	"html/template"

	"github.com/ayxworxfr/go_backoffice/internal/form"
	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/internal/views"
	"github.com/samber/lo"
)

// LineEditor 采购单明细的编辑区
type LineEditor struct {
	ProductEndpoint string
	ProductValue    string
	ProductLabel    string
	// BlankRows 可编辑时在末尾追加的空行数
	BlankRows int
}

// Render 渲染明细；errs 的键形如 lines.{下标}.{字段}
func (e *LineEditor) Render(r *views.Renderer, lines []service.LineForm, products []form.Option,
	errs map[string][]string, readOnly bool) (template.HTML, error) {
	labels := lo.SliceToMap(products, func(o form.Option) (string, string) { return o.Value, o.Label })

	view := &views.LinesView{
		Products: lo.Map(products, func(o form.Option, _ int) views.ProductOption {
			return views.ProductOption{Value: o.Value, Label: o.Label}
		}),
		Total:    service.FormOrderTotal(lines),
		ReadOnly: readOnly,
		Errors:   errs[service.LinesKey],
	}
	rows := lines
	if !readOnly {
		rows = append(append([]service.LineForm{}, lines...), make([]service.LineForm, e.BlankRows)...)
	}
	for i, line := range rows {
		label, ok := labels[line.ProductID]
		if !ok {
			label = line.ProductID
		}
		view.Lines = append(view.Lines, views.LineView{
			Index:        i,
			ProductID:    line.ProductID,
			ProductLabel: label,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			DeliveryDate: line.DeliveryDate,
			Total:        service.FormLineTotal(line),
			Errors:       lineErrors(errs, i),
		})
	}

	body, err := r.Partial(views.PartialLines, view)
	if err != nil {
		return "", err
	}
	return template.HTML(body), nil
}

// lineErrors 取出第 i 行各字段的错误
func lineErrors(errs map[string][]string, i int) map[string][]string {
	out := make(map[string][]string)
	for _, field := range []string{"product_id", "quantity", "unit_price", "delivery_date"} {
		if msgs := errs[fmt.Sprintf("%s.%d.%s", service.LinesKey, i, field)]; len(msgs) > 0 {
			out[field] = msgs
		}
	}
	return out
}

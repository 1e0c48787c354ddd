package service

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/domain/params"
	"github.com/ayxworxfr/go_backoffice/internal/domain/types"
	validator "github.com/ayxworxfr/go_backoffice/internal/domain/validate"
	"github.com/ettle/strcase"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// LinesKey 采购单明细在表单与请求体中的键
const LinesKey = "lines"

// MoneyPlaces 金额展示保留的小数位
const MoneyPlaces = 2

var lineField = regexp.MustCompile(`^lines\[(\d+)\]\[([a-z_]+)\]$`)

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	dateType    = reflect.TypeOf(types.Date{})
)

// LineForm 表单中一行明细的原始文本，用于回填
type LineForm struct {
	ProductID    string
	Quantity     string
	UnitPrice    string
	DeliveryDate string
}

// IsBlank 整行都没填
func (l LineForm) IsBlank() bool {
	return strings.TrimSpace(l.ProductID+l.Quantity+l.UnitPrice+l.DeliveryDate) == ""
}

// LineForms 从 lines[0][quantity] 形式的字段中取出明细，按下标排序
func LineForms(values map[string][]string) []LineForm {
	rows := make(map[int]*LineForm)
	for key, vs := range values {
		m := lineField.FindStringSubmatch(key)
		if m == nil || len(vs) == 0 {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		row, ok := rows[idx]
		if !ok {
			row = &LineForm{}
			rows[idx] = row
		}
		value := strings.TrimSpace(vs[len(vs)-1])
		switch m[2] {
		case "product_id":
			row.ProductID = value
		case "quantity":
			row.Quantity = value
		case "unit_price":
			row.UnitPrice = value
		case "delivery_date":
			row.DeliveryDate = value
		}
	}

	indexes := lo.Keys(rows)
	sort.Ints(indexes)
	return lo.Map(indexes, func(i int, _ int) LineForm { return *rows[i] })
}

// RecordLineForms 编辑时把后端记录中的明细转为表单文本
func RecordLineForms(record map[string]any) []LineForm {
	items, _ := record[LinesKey].([]any)
	forms := make([]LineForm, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		forms = append(forms, LineForm{
			ProductID:    text(relatedID(m["product_id"], m["product"])),
			Quantity:     text(m["quantity"]),
			UnitPrice:    text(m["unit_price"]),
			DeliveryDate: truncateDate(text(m["delivery_date"])),
		})
	}
	return forms
}

// DecodeLines 解码并校验明细；空行忽略，错误按 lines.{下标}.{字段} 返回
func DecodeLines(forms []LineForm) (params.PurchaseOrderLines, map[string][]string) {
	var out params.PurchaseOrderLines
	fieldErrors := make(map[string][]string)

	var raw []map[string]any
	var positions []int
	for i, f := range forms {
		if f.IsBlank() {
			continue
		}
		if f.ProductID == "" {
			addError(fieldErrors, fmt.Sprintf("lines.%d.product_id", i), "Product is required")
		}
		row := map[string]any{
			"product_id": f.ProductID,
			"quantity":   f.Quantity,
			"unit_price": f.UnitPrice,
		}
		if f.DeliveryDate != "" {
			row["delivery_date"] = f.DeliveryDate
		}
		raw = append(raw, row)
		positions = append(positions, i)
	}
	if len(raw) == 0 {
		addError(fieldErrors, LinesKey, "Add at least one line")
		return out, fieldErrors
	}

	// 逐行解码，便于把错误定位到具体输入框
	for n, row := range raw {
		var line params.PurchaseOrderLine
		if err := decode(row, &line); err != nil {
			for _, msg := range decodeMessages(err) {
				addError(fieldErrors, fmt.Sprintf("lines.%d.%s", positions[n], msg.field), msg.text)
			}
			continue
		}
		out.Lines = append(out.Lines, line)
	}
	if len(fieldErrors) > 0 {
		return out, fieldErrors
	}

	violations, err := validator.Decimals(&out)
	if err != nil {
		addError(fieldErrors, LinesKey, err.Error())
		return out, fieldErrors
	}
	for _, v := range violations {
		// lines.{n}.quantity 中的 n 是解码后的序号，换回表单下标
		parts := strings.SplitN(v.Field, ".", 3)
		if len(parts) == 3 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n < len(positions) {
				label := strcase.ToCase(parts[2], strcase.TitleCase, ' ')
				addError(fieldErrors, fmt.Sprintf("lines.%d.%s", positions[n], parts[2]), label+" "+v.Message)
				continue
			}
		}
		addError(fieldErrors, v.Field, v.Message)
	}
	return out, fieldErrors
}

// LineTotal 数量 × 单价，保留两位小数
func LineTotal(line params.PurchaseOrderLine) decimal.Decimal {
	return line.Quantity.Mul(line.UnitPrice).Round(MoneyPlaces)
}

// OrderTotal 各行小计之和
func OrderTotal(lines []params.PurchaseOrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineTotal(line))
	}
	return total
}

// FormLineTotal 表单行的小计，数量或单价无法解析时为空
func FormLineTotal(f LineForm) string {
	qty, err1 := decimal.NewFromString(f.Quantity)
	price, err2 := decimal.NewFromString(f.UnitPrice)
	if err1 != nil || err2 != nil {
		return ""
	}
	return qty.Mul(price).Round(MoneyPlaces).StringFixed(MoneyPlaces)
}

// FormOrderTotal 表单中所有可解析行的合计
func FormOrderTotal(forms []LineForm) string {
	total := decimal.Zero
	for _, f := range forms {
		if sub := FormLineTotal(f); sub != "" {
			total = total.Add(decimal.RequireFromString(sub))
		}
	}
	return total.StringFixed(MoneyPlaces)
}

func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(stringToDecimal, stringToDate),
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "build decoder")
	}
	return decoder.Decode(input)
}

func stringToDecimal(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("is not a number")
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	}
	return data, nil
}

func stringToDate(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != dateType || from.Kind() != reflect.String {
		return data, nil
	}
	d, err := types.ParseDate(data.(string))
	if err != nil {
		return nil, fmt.Errorf("is not a valid date")
	}
	return d, nil
}

type decodeMessage struct {
	field string
	text  string
}

var decodeFieldPattern = regexp.MustCompile(`'([a-z_]+)'`)

// decodeMessages 把 mapstructure 的错误拆成字段级文本
func decodeMessages(err error) []decodeMessage {
	var msErr *mapstructure.Error
	list := []string{err.Error()}
	if errors.As(err, &msErr) {
		list = msErr.Errors
	}
	return lo.Map(list, func(s string, _ int) decodeMessage {
		field := LinesKey
		if m := decodeFieldPattern.FindStringSubmatch(s); m != nil {
			field = m[1]
		}
		label := strcase.ToCase(field, strcase.TitleCase, ' ')
		switch {
		case strings.Contains(s, "is not a number"):
			return decodeMessage{field: field, text: label + " is not a number"}
		case strings.Contains(s, "is not a valid date"):
			return decodeMessage{field: field, text: label + " is not a valid date"}
		}
		return decodeMessage{field: field, text: label + " is invalid"}
	})
}

func addError(errs map[string][]string, key, msg string) {
	errs[key] = append(errs[key], msg)
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// relatedID 明细可能只带 product_id，也可能带嵌套的 product 对象
func relatedID(id any, related any) any {
	if id != nil {
		return id
	}
	if m, ok := related.(map[string]any); ok {
		return m["id"]
	}
	return nil
}

func truncateDate(s string) string {
	if len(s) > len(time.DateOnly) {
		return s[:len(time.DateOnly)]
	}
	return s
}

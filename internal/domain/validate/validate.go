// Package validator 校验 decimal 字段上的 vd 比较规则，例如 `vd:"$>0"`、`vd:"$>=0&&$<=100"`。
package validator

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	decimalType    = reflect.TypeOf(decimal.Decimal{})
	decimalPtrType = reflect.TypeOf((*decimal.Decimal)(nil))
)

// DecimalError 某个字段不满足规则
type DecimalError struct {
	// Field 按 mapstructure 标签拼出的路径，如 lines.0.quantity
	Field   string
	Message string
}

func (e *DecimalError) Error() string {
	return e.Field + " " + e.Message
}

// Decimals 递归校验 v 中所有带 vd 标签的 decimal 字段，返回全部不满足的字段；
// 标签本身写错时返回 error。nil 指针字段跳过。
func Decimals(v any) ([]*DecimalError, error) {
	value := reflect.ValueOf(v)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil, nil
		}
		value = value.Elem()
	}
	var result []*DecimalError
	if err := walk(value, "", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func walk(value reflect.Value, prefix string, result *[]*DecimalError) error {
	switch value.Kind() {
	case reflect.Ptr:
		if value.IsNil() {
			return nil
		}
		return walk(value.Elem(), prefix, result)
	case reflect.Slice, reflect.Array:
		for j := 0; j < value.Len(); j++ {
			if err := walk(value.Index(j), join(prefix, strconv.Itoa(j)), result); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
	default:
		return nil
	}

	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)
		structField := value.Type().Field(i)
		if !structField.IsExported() {
			continue
		}
		path := join(prefix, fieldName(structField))

		switch field.Type() {
		case decimalType:
			if err := check(field.Interface().(decimal.Decimal), structField, path, result); err != nil {
				return err
			}
		case decimalPtrType:
			if field.IsNil() {
				continue
			}
			if err := check(*field.Interface().(*decimal.Decimal), structField, path, result); err != nil {
				return err
			}
		default:
			if err := walk(field, path, result); err != nil {
				return err
			}
		}
	}
	return nil
}

func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("mapstructure"); tag != "" && tag != "-" {
		return strings.Split(tag, ",")[0]
	}
	return f.Name
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// check 规则之间是“且”，第一个不满足的规则生效
func check(field decimal.Decimal, structField reflect.StructField, path string, result *[]*DecimalError) error {
	tag := structField.Tag.Get("vd")
	if tag == "" {
		return nil
	}

	for _, part := range strings.Split(tag, "&&") {
		part = strings.TrimSpace(part)
		op, valStr := extractOperatorAndValue(part)
		if op == "" {
			return errors.Errorf("unsupported validation rule for field %s: %s", structField.Name, part)
		}

		val, err := decimal.NewFromString(valStr)
		if err != nil {
			return errors.Wrapf(err, "invalid validation tag for field %s", structField.Name)
		}

		if !compareDecimal(field, val, op) {
			*result = append(*result, &DecimalError{
				Field:   path,
				Message: "must be " + getOperatorDescription(op) + " " + valStr,
			})
			return nil
		}
	}
	return nil
}

func extractOperatorAndValue(part string) (string, string) {
	operators := []string{"$>=", "$<=", "$>", "$<", "$="}
	for _, op := range operators {
		if strings.HasPrefix(part, op) {
			return op, strings.TrimSpace(strings.TrimPrefix(part, op))
		}
	}
	return "", ""
}

func compareDecimal(field, val decimal.Decimal, op string) bool {
	switch op {
	case "$>=":
		return field.GreaterThanOrEqual(val)
	case "$<=":
		return field.LessThanOrEqual(val)
	case "$>":
		return field.GreaterThan(val)
	case "$<":
		return field.LessThan(val)
	case "$=":
		return field.Equal(val)
	}
	return false
}

func getOperatorDescription(op string) string {
	switch op {
	case "$>=":
		return "greater than or equal to"
	case "$<=":
		return "less than or equal to"
	case "$>":
		return "greater than"
	case "$<":
		return "less than"
	case "$=":
		return "equal to"
	}
	return ""
}

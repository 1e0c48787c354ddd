package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()

	patternCache sync.Map // string -> *regexp.Regexp
	exprCache    sync.Map // string -> *vm.Program
)

// exprEnv 表达式可见的变量
type exprEnv struct {
	Value  string            `expr:"value"`
	Values map[string]string `expr:"values"`
}

// check 按 必填 → 最短 → 最长 → 格式 → 类型 → 自定义函数 → 表达式 的顺序校验，返回第一条错误
func check(f Field, value string, values map[string]string) string {
	c := f.base()
	label := c.DisplayLabel()

	empty := strings.TrimSpace(value) == ""
	if _, ok := f.(*CheckboxField); ok {
		empty = !truthy(value)
	}
	if empty {
		if c.Required {
			return fmt.Sprintf("%s is required.", label)
		}
		return ""
	}

	length := utf8.RuneCountInString(value)
	if c.MinLength > 0 && length < c.MinLength {
		return fmt.Sprintf("%s must be at least %d characters.", label, c.MinLength)
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return fmt.Sprintf("%s may not be greater than %d characters.", label, c.MaxLength)
	}
	if c.Pattern != "" {
		re, err := compilePattern(c.Pattern)
		if err != nil {
			return fmt.Sprintf("%s has an invalid pattern.", label)
		}
		if !re.MatchString(value) {
			if c.PatternMessage != "" {
				return c.PatternMessage
			}
			return fmt.Sprintf("%s format is invalid.", label)
		}
	}
	if msg := checkType(f, label, value); msg != "" {
		return msg
	}
	if c.Validator != nil {
		if msg := c.Validator(value, values); msg != "" {
			return msg
		}
	}
	if c.Expr != "" {
		ok, err := evalExpr(c.Expr, exprEnv{Value: value, Values: values})
		if err != nil || !ok {
			if c.ExprMessage != "" {
				return c.ExprMessage
			}
			return fmt.Sprintf("%s is invalid.", label)
		}
	}
	return ""
}

func checkType(f Field, label, value string) string {
	switch field := f.(type) {
	case *EmailField:
		if err := validate.Var(value, "email"); err != nil {
			return fmt.Sprintf("%s must be a valid email address.", label)
		}
	case *NumberField:
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Sprintf("%s must be a number.", label)
		}
		if field.Min != nil && n < *field.Min {
			return fmt.Sprintf("%s must be at least %s.", label, formatFloat(*field.Min))
		}
		if field.Max != nil && n > *field.Max {
			return fmt.Sprintf("%s may not be greater than %s.", label, formatFloat(*field.Max))
		}
	case *DateField:
		if _, err := time.Parse(time.DateOnly, value); err != nil {
			return fmt.Sprintf("%s is not a valid date.", label)
		}
	case *SelectField:
		if len(field.Options) > 0 && field.OptionsEndpoint == "" && !field.Multiple {
			for _, opt := range field.Options {
				if opt.Value == value {
					return ""
				}
			}
			return fmt.Sprintf("The selected %s is invalid.", strings.ToLower(label))
		}
	}
	return ""
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}

func evalExpr(source string, env exprEnv) (bool, error) {
	var program *vm.Program
	if p, ok := exprCache.Load(source); ok {
		program = p.(*vm.Program)
	} else {
		compiled, err := expr.Compile(source, expr.Env(exprEnv{}), expr.AsBool())
		if err != nil {
			return false, err
		}
		exprCache.Store(source, compiled)
		program = compiled
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	ok, _ := out.(bool)
	return ok, nil
}

// CompileExpr 启动时检查配置里的表达式
func CompileExpr(source string) error {
	_, err := expr.Compile(source, expr.Env(exprEnv{}), expr.AsBool())
	return err
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ayxworxfr/go_backoffice/pkg/httpclient"
)

// ValidationError 后端返回 422 时的字段级错误
type ValidationError struct {
	Message string
	Errors  map[string][]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// APIError 其他非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, http.StatusText(e.Status))
}

type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// translate 把 httpclient 的状态码错误转换为 ValidationError / APIError，其余错误原样返回
func translate(err error) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	var body errorBody
	_ = json.Unmarshal(statusErr.Body, &body)

	if statusErr.StatusCode == http.StatusUnprocessableEntity {
		return &ValidationError{Message: body.Message, Errors: body.Errors}
	}
	return &APIError{Status: statusErr.StatusCode, Message: body.Message}
}

// Message 提取可展示给用户的错误信息：优先使用后端 message，否则使用 fallback
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) && valErr.Message != "" {
		return valErr.Message
	}
	return fallback
}

// FieldErrors 返回 422 的字段错误，非校验错误返回 nil
func FieldErrors(err error) map[string][]string {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Errors
	}
	return nil
}

// IsUnauthorized 后端是否拒绝了 token
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsNotFound 资源是否不存在
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

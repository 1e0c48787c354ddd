package context

import (
	"fmt"
	"net/url"

	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

type responseKind int

const (
	kindJSON responseKind = iota
	kindHTML
	kindRedirect
	kindAttachment
)

// Response 处理函数的统一返回值；默认以 {code, message, data} 信封输出 JSON
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`

	kind        responseKind
	status      int
	body        []byte
	contentType string
	location    string
	filename    string
}

func (rsp *Response) Write(ctx *Context) {
	switch rsp.kind {
	case kindHTML:
		ctx.RequestContext.Data(rsp.status, "text/html; charset=utf-8", rsp.body)
	case kindRedirect:
		ctx.RequestContext.Redirect(rsp.status, []byte(rsp.location))
	case kindAttachment:
		if rsp.filename != "" {
			ctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", rsp.filename, url.PathEscape(rsp.filename)))
		}
		ctx.RequestContext.Data(rsp.status, rsp.contentType, rsp.body)
	default:
		// 业务错误同样返回200，由 code 区分
		ctx.RequestContext.JSON(consts.StatusOK, rsp)
	}
}

// StatusCode 响应将使用的 HTTP 状态码
func (rsp *Response) StatusCode() int {
	if rsp.kind == kindJSON {
		return consts.StatusOK
	}
	return rsp.status
}

// Location 重定向目标，非重定向响应为空
func (rsp *Response) Location() string {
	return rsp.location
}

// Body 返回 HTML 或附件内容
func (rsp *Response) Body() []byte {
	return rsp.body
}

// HTML 输出渲染好的页面
func HTML(status int, body []byte) *Response {
	return &Response{kind: kindHTML, status: status, body: body, Code: SUCCESS_OK}
}

// Redirect 以 303 See Other 重定向，表单提交后使用
func Redirect(location string) *Response {
	return &Response{kind: kindRedirect, status: consts.StatusSeeOther, location: location, Code: SUCCESS_OK}
}

// Found 以 302 重定向
func Found(location string) *Response {
	return &Response{kind: kindRedirect, status: consts.StatusFound, location: location, Code: SUCCESS_OK}
}

// Attachment 输出下载文件；filename 为空时直接在浏览器中打开
func Attachment(contentType, filename string, body []byte) *Response {
	return &Response{kind: kindAttachment, status: consts.StatusOK, contentType: contentType, filename: filename, body: body, Code: SUCCESS_OK}
}

// 成功响应函数
func Success(data any) *Response {
	return &Response{
		Code:    SUCCESS_OK,
		Message: "Success",
		Data:    data,
	}
}

func PageSuccess(data any, total int64) *Response {
	return &Response{
		Code:    SUCCESS_OK,
		Message: "Success",
		Data: map[string]any{
			"records": data,
			"total":   total,
		},
	}
}

// NoContent 响应成功但无内容（如 DELETE 请求）
func NoContent() *Response {
	return &Response{
		Code:    SUCCESS_NO_CONTENT,
		Message: "No content",
	}
}

// 客户端错误响应函数（支持string/error类型）
func ParamError(message any) *Response {
	return &Response{
		Code:    CLIENT_PARAM_ERROR,
		Message: formatMessage("Parameter error", message),
	}
}

func NotFound(message any) *Response {
	return &Response{
		Code:    CLIENT_NOT_FOUND,
		Message: formatMessage("Resource not found", message),
	}
}

func Unauthorized(message any) *Response {
	return &Response{
		Code:    CLIENT_UNAUTHORIZED,
		Message: formatMessage("Unauthorized", message),
	}
}

func Forbidden(message any) *Response {
	return &Response{
		Code:    CLIENT_FORBIDDEN,
		Message: formatMessage("Forbidden", message),
	}
}

// ValidationFailed 字段级校验错误，data 为 {field: [messages]}
func ValidationFailed(errors map[string][]string) *Response {
	return &Response{
		Code:    CLIENT_VALIDATION_FAILED,
		Message: "Validation failed",
		Data:    errors,
	}
}

// 服务端错误响应函数
func InternalError(message ...any) *Response {
	return &Response{
		Code:    SERVER_INTERNAL_ERROR,
		Message: formatOptionalMessage("Internal server error", message...),
	}
}

// 接口限流响应函数
func RateLimit(message any) *Response {
	return &Response{
		Code:    SERVER_RATE_LIMIT,
		Message: formatMessage("Rate limit", message),
	}
}

func ServiceUnavailable(message any) *Response {
	return &Response{
		Code:    SERVER_SERVICE_UNAVAILABLE,
		Message: formatMessage("Service unavailable", message),
	}
}

// 后端服务错误响应函数
func ThirdPartyError(serviceName string, message any) *Response {
	return &Response{
		Code:    THIRD_PARTY_API_ERROR,
		Message: formatServiceMessage(serviceName, "service error", message),
	}
}

// 系统错误响应函数
func SystemError(message any) *Response {
	return &Response{
		Code:    SYSTEM_ERROR,
		Message: formatMessage("System error", message),
	}
}

// 格式化消息（支持string/error类型）
func formatMessage(prefix string, message any) string {
	switch v := message.(type) {
	case string:
		return fmt.Sprintf("%s: %s", prefix, v)
	case error:
		return fmt.Sprintf("%s: %s", prefix, v.Error())
	default:
		return prefix
	}
}

// 格式化服务错误消息
func formatServiceMessage(service, action string, message any) string {
	switch v := message.(type) {
	case string:
		return fmt.Sprintf("%s %s: %s", service, action, v)
	case error:
		return fmt.Sprintf("%s %s: %s", service, action, v.Error())
	default:
		return fmt.Sprintf("%s %s", service, action)
	}
}

// 格式化可选消息（用于支持变参）
func formatOptionalMessage(prefix string, message ...any) string {
	if len(message) == 0 {
		return prefix
	}
	if err, ok := message[0].(error); ok {
		return fmt.Sprintf("%s: %s", prefix, err.Error())
	}
	if str, ok := message[0].(string); ok {
		return fmt.Sprintf("%s: %s", prefix, str)
	}
	return prefix
}

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const masked = "****"

func LogMiddleware() app.HandlerFunc {
	return NewLogger().Logger()
}

// LoggerConfig 配置结构体，用于设置日志中间件参数
type LoggerConfig struct {
	MaxValueSize    int    // 单个参数值的最大长度
	MaxBodySize     int    // 记录 JSON 响应体的最大长度
	TruncatedSuffix string // 截断值的后缀标识
	SensitiveFields []string
	// SkipPaths 不记录的路径，例如 /metrics
	SkipPaths []string
}

// LoggerMiddleware 日志中间件结构体
type LoggerMiddleware struct {
	config LoggerConfig
}

// NewLogger 创建一个新的日志中间件实例
func NewLogger(config ...LoggerConfig) *LoggerMiddleware {
	cfg := LoggerConfig{
		MaxValueSize:    1024,
		MaxBodySize:     1024 * 4,
		TruncatedSuffix: "[TRUNCATED]",
		SensitiveFields: []string{"password", "token", "secret", "credit_card", "ssn"},
	}

	if len(config) > 0 {
		userCfg := config[0]
		if userCfg.MaxValueSize > 0 {
			cfg.MaxValueSize = userCfg.MaxValueSize
		}
		if userCfg.MaxBodySize > 0 {
			cfg.MaxBodySize = userCfg.MaxBodySize
		}
		if userCfg.TruncatedSuffix != "" {
			cfg.TruncatedSuffix = userCfg.TruncatedSuffix
		}
		if len(userCfg.SensitiveFields) > 0 {
			cfg.SensitiveFields = userCfg.SensitiveFields
		}
		cfg.SkipPaths = userCfg.SkipPaths
	}

	return &LoggerMiddleware{config: cfg}
}

// Logger 实现中间件接口，返回Hertz处理函数
func (l *LoggerMiddleware) Logger() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		path := string(c.Request.URI().Path())
		for _, skip := range l.config.SkipPaths {
			if path == skip {
				c.Next(ctx)
				return
			}
		}

		start := time.Now()
		span := trace.SpanFromContext(ctx)

		requestParams := l.extractRequestParams(c)
		if len(requestParams) > 0 {
			span.SetAttributes(attribute.String("http.request.params", fmt.Sprintf("%v", requestParams)))
		}

		logFields := []zap.Field{
			zap.String("method", string(c.Request.Method())),
			zap.String("path", path),
			zap.String("client_ip", l.getClientIP(c)),
			zap.String("user_agent", string(c.Request.Header.UserAgent())),
		}
		logger.Debug(ctx, "Request started", append(logFields, zap.Any("params", requestParams))...)

		c.Next(ctx)

		latency := time.Since(start)
		statusCode := c.Response.StatusCode()
		logFields = append(logFields,
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.Int("response_size_bytes", len(c.Response.Body())),
		)
		if body := l.responseBody(c); body != "" {
			logFields = append(logFields, zap.String("response_body", body))
		}

		if statusCode >= consts.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(statusCode))
			logger.Warn(ctx, "Request completed with error", logFields...)
		} else {
			span.SetStatus(codes.Ok, "")
			logger.Info(ctx, "Request completed", logFields...)
		}
		span.AddEvent("request_completed", trace.WithAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Int64("http.latency_ms", latency.Milliseconds()),
		))
	}
}

// 从请求头获取客户端IP
func (l *LoggerMiddleware) getClientIP(c *app.RequestContext) string {
	if xff := c.Request.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := c.Request.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	remoteAddr := c.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// responseBody 只记录 JSON 响应，页面与附件只记大小
func (l *LoggerMiddleware) responseBody(c *app.RequestContext) string {
	if !strings.Contains(string(c.Response.Header.ContentType()), "application/json") {
		return ""
	}
	body := c.Response.Body()
	if len(body) <= l.config.MaxBodySize {
		return string(body)
	}
	return string(body[:l.config.MaxBodySize]) + l.config.TruncatedSuffix
}

func (l *LoggerMiddleware) isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, field := range l.config.SensitiveFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

// extractRequestParams 收集查询参数、表单与 JSON 请求体，敏感字段打码
func (l *LoggerMiddleware) extractRequestParams(c *app.RequestContext) map[string]string {
	params := make(map[string]string)
	set := func(key string, value []byte) {
		if _, ok := params[key]; ok {
			return
		}
		if l.isSensitive(key) {
			params[key] = masked
			return
		}
		if len(value) > l.config.MaxValueSize {
			params[key] = string(value[:l.config.MaxValueSize]) + l.config.TruncatedSuffix
			return
		}
		params[key] = string(value)
	}

	c.QueryArgs().VisitAll(func(key, value []byte) {
		set(string(key), value)
	})

	contentType := string(c.Request.Header.ContentType())
	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		c.PostArgs().VisitAll(func(key, value []byte) {
			set(string(key), value)
		})
	case strings.HasPrefix(contentType, "multipart/form-data"):
		form, err := c.MultipartForm()
		if err != nil {
			params["_multipart_error"] = err.Error()
			break
		}
		for key, values := range form.Value {
			if len(values) > 0 {
				set(key, []byte(values[len(values)-1]))
			}
		}
		for key, files := range form.File {
			names := make([]string, 0, len(files))
			for _, f := range files {
				names = append(names, fmt.Sprintf("%s(%d bytes)", f.Filename, f.Size))
			}
			set(key, []byte(strings.Join(names, ",")))
		}
	case strings.Contains(contentType, "application/json") && len(c.Request.Body()) > 0:
		var jsonData map[string]any
		if err := json.Unmarshal(c.Request.Body(), &jsonData); err != nil {
			params["_json_parse_error"] = err.Error()
			break
		}
		for k, v := range jsonData {
			if s, ok := v.(string); ok {
				set(k, []byte(s))
				continue
			}
			raw, _ := json.Marshal(v)
			set(k, raw)
		}
	}
	return params
}

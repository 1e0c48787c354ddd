package middleware

import (
	"context"

	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequestIDHeader 请求ID的请求头与响应头
const RequestIDHeader = "X-Request-ID"

// TraceContextMiddleware 提取追踪信息与请求ID并注入到日志 context
func TraceContextMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		requestID := string(c.Request.Header.Peek(RequestIDHeader))
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Response.Header.Set(RequestIDHeader, requestID)

		fields := []zap.Field{zap.String("request_id", requestID)}
		if spanContext := trace.SpanFromContext(ctx).SpanContext(); spanContext.IsValid() {
			fields = append(fields,
				zap.String("trace_id", spanContext.TraceID().String()),
				zap.String("span_id", spanContext.SpanID().String()),
			)
		}
		c.Next(logger.WithContext(ctx, fields...))
	}
}

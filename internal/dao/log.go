package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"xorm.io/xorm/contexts"
)

// XormLogger 记录 SQL 执行信息，并作为事件挂到当前 span 上
type XormLogger struct {
	showSQL       bool
	recordEvent   bool
	slowThreshold time.Duration
}

func NewXormLogger(showSQL bool) *XormLogger {
	return &XormLogger{
		showSQL:       showSQL,
		recordEvent:   true,
		slowThreshold: 100 * time.Millisecond,
	}
}

func (s *XormLogger) BeforeProcess(c *contexts.ContextHook) (context.Context, error) {
	return c.Ctx, nil
}

func (s *XormLogger) AfterProcess(c *contexts.ContextHook) error {
	// 慢查询总是记录
	if c.ExecuteTime > s.slowThreshold {
		logger.Warn(c.Ctx, "Slow SQL", zap.String("sql", c.SQL), zap.Duration("elapsed", c.ExecuteTime))
	} else if s.showSQL && c.ExecuteTime > 0 {
		logger.Debug(c.Ctx, "SQL", zap.String("sql", c.SQL), zap.Int("args", len(c.Args)), zap.Duration("elapsed", c.ExecuteTime))
	}
	if c.Err != nil {
		logger.Warn(c.Ctx, "SQL failed", zap.String("sql", c.SQL), zap.Error(c.Err))
	}
	if s.recordEvent {
		RecordDbEvent(c.Ctx, c.SQL, c.ExecuteTime, c.Err)
	}
	return nil
}

// RecordDbEvent 参数值不写入 span，会话表中存的是令牌密文
func RecordDbEvent(ctx context.Context, sql string, duration time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attributes := []attribute.KeyValue{
		attribute.String("sql", sql),
		attribute.String("duration", fmt.Sprintf("%v", duration)),
	}
	if err != nil {
		attributes = append(attributes, attribute.String("error", err.Error()))
	}
	span.AddEvent("db_execute_info", trace.WithAttributes(attributes...))
}

package sentinel

import (
	"github.com/alibaba/sentinel-golang/logging"
	"go.uber.org/zap"
)

// zapLogger 把 sentinel 的日志接到 zap
type zapLogger struct {
	logger *zap.Logger
}

var _ logging.Logger = (*zapLogger)(nil)

func newZapLogger(l *zap.Logger) *zapLogger {
	return &zapLogger{logger: l.Named("sentinel").WithOptions(zap.AddCallerSkip(1))}
}

func (l *zapLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l *zapLogger) DebugEnabled() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}

func (l *zapLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, fields(keysAndValues)...)
}

func (l *zapLogger) InfoEnabled() bool {
	return l.logger.Core().Enabled(zap.InfoLevel)
}

func (l *zapLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, fields(keysAndValues)...)
}

func (l *zapLogger) WarnEnabled() bool {
	return l.logger.Core().Enabled(zap.WarnLevel)
}

func (l *zapLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func (l *zapLogger) ErrorEnabled() bool {
	return l.logger.Core().Enabled(zap.ErrorLevel)
}

// fields 键值对转 zap 字段，非字符串键忽略，落单的键值为 nil
func fields(keysAndValues []any) []zap.Field {
	out := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		var value any
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		out = append(out, zap.Any(key, value))
	}
	return out
}

package cron

import (
	"context"

	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"go.uber.org/zap"
)

// backendHealth 探测远端 API，结果供 /health 读取
func backendHealth(health *service.HealthService) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := health.Check(ctx); err != nil {
			return err
		}
		if last := health.Last(); last != nil {
			logger.Debug(ctx, "[TASK] Backend healthy",
				zap.Int("status", last.StatusCode), zap.String("latency", last.Latency))
		}
		return nil
	}
}

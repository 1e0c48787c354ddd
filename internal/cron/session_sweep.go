package cron

import (
	"context"
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/metrics"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"go.uber.org/zap"
)

// Sweeper 可清理过期会话的存储
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// IdleEvicter 按闲置时间回收内存状态
type IdleEvicter interface {
	EvictIdle(idle time.Duration) int
}

// LoaderCounter 驻留的表格加载器
type LoaderCounter interface {
	IdleEvicter
	Len() int
}

// sessionSweep 清理过期会话、闲置的表格加载器、认证缓存与限流记录
func sessionSweep(store Sweeper, loaders LoaderCounter, auth, limiter IdleEvicter, idle time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		swept, err := store.Sweep(ctx)
		if err != nil {
			return err
		}
		evicted := loaders.EvictIdle(idle)
		forgotten := auth.EvictIdle(idle)
		clients := 0
		if limiter != nil {
			clients = limiter.EvictIdle(idle)
		}
		metrics.ActiveLoaders.Set(float64(loaders.Len()))

		if swept+evicted+forgotten+clients > 0 {
			logger.Info(ctx, "[TASK] Session sweep finished",
				zap.Int("sessions", swept),
				zap.Int("loaders", evicted),
				zap.Int("users", forgotten),
				zap.Int("clients", clients))
		}
		return nil
	}
}

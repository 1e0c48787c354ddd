package sentinel

import (
	"context"
	"sync"
	"time"

	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// IPLimiterConfig 按客户端 IP 的令牌桶配置
type IPLimiterConfig struct {
	RPS   float64
	Burst int
	// Routes 受保护的路由，格式 "METHOD /path"
	Routes []string
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter 登录、注册等接口的按 IP 限流，防止暴力尝试。
// sentinel 的流控规则按路径全局计数，这里按来源 IP 分别计数。
type IPLimiter struct {
	limit  rate.Limit
	burst  int
	routes map[string]bool
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*ipEntry

	requests metric.Int64Counter
	blocked  metric.Int64Counter
}

// NewIPLimiter 指标通过全局 MeterProvider 上报，未配置时为空实现
func NewIPLimiter(cfg IPLimiterConfig) *IPLimiter {
	l := &IPLimiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		routes:  make(map[string]bool, len(cfg.Routes)),
		now:     time.Now,
		clients: make(map[string]*ipEntry),
	}
	for _, route := range cfg.Routes {
		l.routes[route] = true
	}

	meter := otel.GetMeterProvider().Meter("backoffice/ratelimit")
	var err error
	if l.requests, err = meter.Int64Counter("rate_limiter.requests",
		metric.WithDescription("Requests checked by the per-IP limiter")); err != nil {
		logger.Error(context.Background(), "Failed to create request counter", zap.Error(err))
	}
	if l.blocked, err = meter.Int64Counter("rate_limiter.blocked",
		metric.WithDescription("Requests rejected by the per-IP limiter")); err != nil {
		logger.Error(context.Background(), "Failed to create blocked counter", zap.Error(err))
	}
	return l
}

// Allow 消耗该 IP 的一个令牌
func (l *IPLimiter) Allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	entry, ok := l.clients[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

// Middleware 只拦截配置的路由，其他请求直接放行
func (l *IPLimiter) Middleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		route := string(c.Method()) + " " + string(c.Path())
		if !l.routes[route] {
			c.Next(ctx)
			return
		}

		ip := c.ClientIP()
		allowed := l.Allow(ip)
		attrs := metric.WithAttributes(attribute.String("route", route), attribute.Bool("blocked", !allowed))
		if l.requests != nil {
			l.requests.Add(ctx, 1, attrs)
		}
		if allowed {
			c.Next(ctx)
			return
		}

		if l.blocked != nil {
			l.blocked.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
		}
		logger.Warn(ctx, "Request blocked by rate limiter", zap.String("ip", ip), zap.String("route", route))
		rejectTooMany(mycontext.NewContext(ctx, c))
	}
}

// EvictIdle 回收长时间没有请求的 IP
func (l *IPLimiter) EvictIdle(idle time.Duration) int {
	if l == nil {
		return 0
	}
	deadline := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for ip, entry := range l.clients {
		if entry.lastSeen.Before(deadline) {
			delete(l.clients, ip)
			evicted++
		}
	}
	return evicted
}

func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

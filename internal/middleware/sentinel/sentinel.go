// Package sentinel 基于 sentinel-golang 的入站限流与熔断，规则来自 conf/sentinel.yaml。
package sentinel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
	sconfig "github.com/alibaba/sentinel-golang/core/config"
	"github.com/alibaba/sentinel-golang/core/flow"
	"github.com/alibaba/sentinel-golang/logging"
	"github.com/ayxworxfr/go_backoffice/internal/config"
	mycontext "github.com/ayxworxfr/go_backoffice/pkg/context"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"
)

// reloadInterval 规则文件的检查间隔
const reloadInterval = 30 * time.Second

// Sentinel 哨兵中间件
type Sentinel struct {
	configManager *config.ConfigManager

	mu sync.RWMutex
	// exact 键为 "METHOD path" 或 "* path"
	exact map[string]string
	// suffix 以 * 开头的路径，例如 */export
	suffix []suffixRule
}

type suffixRule struct {
	method string
	suffix string
	name   string
}

// New 读取规则文件、初始化 sentinel 并在后台定期重载，ctx 取消时停止重载
func New(ctx context.Context, configPath string, l *zap.Logger) (*Sentinel, error) {
	configManager, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	mw := &Sentinel{configManager: configManager}
	if err := mw.init(l); err != nil {
		return nil, fmt.Errorf("failed to initialize Sentinel: %w", err)
	}
	if err := mw.loadRules(configManager.GetConfig()); err != nil {
		return nil, fmt.Errorf("failed to load Sentinel rules: %w", err)
	}

	configManager.StartWatcher(ctx, reloadInterval, func(cfg *config.SentinelConfig) {
		if err := mw.loadRules(cfg); err != nil {
			logger.Error(ctx, "Failed to refresh Sentinel rules", zap.Error(err))
		}
	})
	return mw, nil
}

func (mw *Sentinel) init(l *zap.Logger) error {
	cfg := mw.configManager.GetConfig()

	sentinelConfig := sconfig.NewDefaultConfig()
	sentinelConfig.Sentinel.App.Name = cfg.Sentinel.AppName
	if cfg.Sentinel.Log.Enabled {
		sentinelConfig.Sentinel.Log = sconfig.LogConfig{
			Dir:    cfg.Sentinel.Log.Dir,
			UsePid: cfg.Sentinel.Log.UsePid,
			Metric: sconfig.MetricLogConfig{
				SingleFileMaxSize: cfg.Sentinel.Log.Metric.SingleFileMaxSize,
				MaxFileCount:      cfg.Sentinel.Log.Metric.MaxFileCount,
				FlushIntervalSec:  cfg.Sentinel.Log.Metric.FlushIntervalSec,
			},
		}
	}

	if err := logging.ResetGlobalLogger(newZapLogger(l)); err != nil {
		return err
	}
	return api.InitWithConfig(sentinelConfig)
}

// loadRules 重建路径映射并替换 sentinel 中的全部规则
func (mw *Sentinel) loadRules(cfg *config.SentinelConfig) error {
	exact := make(map[string]string)
	var suffix []suffixRule
	var flowRules []*flow.Rule
	var cbRules []*circuitbreaker.Rule

	for i := range cfg.Sentinel.Resources {
		res := &cfg.Sentinel.Resources[i]
		if !res.Enabled {
			continue
		}
		if strings.HasPrefix(res.Path, "*") {
			suffix = append(suffix, suffixRule{
				method: strings.ToUpper(res.Method),
				suffix: strings.TrimPrefix(res.Path, "*"),
				name:   res.Name,
			})
		} else {
			exact[res.MatchKey()] = res.Name
		}
		flowRules = append(flowRules, res.ToFlowRules()...)
		cbRules = append(cbRules, res.ToCircuitBreakerRules(*cfg)...)
	}

	if _, err := flow.LoadRules(flowRules); err != nil {
		return fmt.Errorf("failed to load flow rules: %w", err)
	}
	if _, err := circuitbreaker.LoadRules(cbRules); err != nil {
		return fmt.Errorf("failed to load circuit breaker rules: %w", err)
	}

	mw.mu.Lock()
	mw.exact, mw.suffix = exact, suffix
	mw.mu.Unlock()

	logger.Debug(context.Background(), "Sentinel rules loaded",
		zap.Int("flow_rules", len(flowRules)), zap.Int("circuit_breaker_rules", len(cbRules)))
	return nil
}

// match 先按方法+路径精确匹配，再按后缀匹配；未配置的路径不受保护
func (mw *Sentinel) match(method, path string) (string, bool) {
	mw.mu.RLock()
	defer mw.mu.RUnlock()
	if name, ok := mw.exact[method+" "+path]; ok {
		return name, true
	}
	if name, ok := mw.exact["* "+path]; ok {
		return name, true
	}
	for _, rule := range mw.suffix {
		if (rule.method == "" || rule.method == method) && strings.HasSuffix(path, rule.suffix) {
			return rule.name, true
		}
	}
	return "", false
}

// Middleware 返回Hertz中间件函数
func (mw *Sentinel) Middleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		resourceName, ok := mw.match(string(c.Method()), string(c.Path()))
		if !ok {
			c.Next(ctx)
			return
		}

		entry, blockErr := api.Entry(resourceName,
			api.WithTrafficType(base.Inbound),
			api.WithResourceType(base.ResTypeWeb),
		)
		if blockErr != nil {
			logger.Warn(ctx, "Request blocked by Sentinel",
				zap.String("resource", resourceName),
				zap.String("reason", blockErr.BlockType().String()))
			rejectTooMany(mycontext.NewContext(ctx, c))
			return
		}
		defer entry.Exit()

		c.Next(ctx)
		if status := c.Response.StatusCode(); status >= consts.StatusInternalServerError {
			api.TraceError(entry, fmt.Errorf("status %d", status))
		}
	}
}

func rejectTooMany(c *mycontext.Context) {
	if c.WantsJSON() {
		c.JSON(consts.StatusTooManyRequests, mycontext.RateLimit("Too many requests, please try again later"))
	} else {
		c.String(consts.StatusTooManyRequests, "Too many requests, please try again later.")
	}
	c.Abort()
}

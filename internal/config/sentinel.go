package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
	"github.com/alibaba/sentinel-golang/core/flow"
	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"gopkg.in/yaml.v2"
)

// SentinelConfig 主配置结构
type SentinelConfig struct {
	Sentinel struct {
		AppName              string    `yaml:"app_name"`
		Log                  LogConfig `yaml:"log"`
		GlobalCircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			RetryTimeoutMs   uint32 `yaml:"retry_timeout_ms"`
			MinRequestAmount uint64 `yaml:"min_request_amount"`
			StatIntervalMs   uint32 `yaml:"stat_interval_ms"`
		} `yaml:"global_circuit_breaker"`
		Resources []ResourceConfig `yaml:"resources"`
	} `yaml:"sentinel"`
}

type LogConfig struct {
	Enabled bool            `yaml:"enabled"`
	UsePid  bool            `yaml:"usePid"`
	Dir     string          `yaml:"dir"`
	Metric  MetricLogConfig `yaml:"metric"`
}

type MetricLogConfig struct {
	HttpAddr          string `yaml:"httpAddr"`
	HttpPath          string `yaml:"httpPath"`
	SingleFileMaxSize uint64 `yaml:"singleFileMaxSize"`
	MaxFileCount      uint32 `yaml:"maxFileCount"`
	FlushIntervalSec  uint32 `yaml:"flushIntervalSec"`
}

// ResourceConfig 资源配置
type ResourceConfig struct {
	Name               string                   `yaml:"name"`
	Path               string                   `yaml:"path"`
	Method             string                   `yaml:"method"` // 为空时匹配所有方法
	Enabled            bool                     `yaml:"enabled"`
	FlowRule           FlowRuleConfig           `yaml:"flow_rule"`
	CircuitBreakerRule CircuitBreakerRuleConfig `yaml:"circuit_breaker_rule"`
}

// FlowRuleConfig 限流规则配置
type FlowRuleConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Threshold         float64 `yaml:"threshold"`
	ControlBehavior   string  `yaml:"control_behavior"`
	MaxQueueingTimeMs int     `yaml:"max_queueing_time_ms"`
}

// CircuitBreakerRuleConfig 熔断规则配置
type CircuitBreakerRuleConfig struct {
	Enabled             bool    `yaml:"enabled"`
	Strategy            string  `yaml:"strategy"`
	SlowRtThreshold     int64   `yaml:"slow_rt_threshold"`
	ErrorRatioThreshold float64 `yaml:"error_ratio_threshold"`
	MinRequestAmount    uint64  `yaml:"min_request_amount"`
	StatIntervalMs      uint32  `yaml:"stat_interval_ms"`
	MaxAllowedRtMs      uint64  `yaml:"max_allowed_rt_ms"`
}

// ConfigManager 限流规则文件管理器，支持定期重新加载
type ConfigManager struct {
	configPath string
	config     *SentinelConfig
	mutex      sync.RWMutex
}

// ParseSentinelConfig 解析限流规则内容
func ParseSentinelConfig(data []byte) (*SentinelConfig, error) {
	cfg := &SentinelConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for _, res := range cfg.Sentinel.Resources {
		if res.Enabled && res.Name == "" {
			return nil, fmt.Errorf("sentinel resource for path %q has no name", res.Path)
		}
	}
	return cfg, nil
}

// NewConfigManager 创建配置管理器
func NewConfigManager(configPath string) (*ConfigManager, error) {
	manager := &ConfigManager{
		configPath: configPath,
	}

	err := manager.reloadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return manager, nil
}

// GetConfig 获取当前配置
func (cm *ConfigManager) GetConfig() *SentinelConfig {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.config
}

// StartWatcher 定期重新加载规则文件，ctx 取消后退出；onReload 在每次成功加载后调用
func (cm *ConfigManager) StartWatcher(ctx context.Context, interval time.Duration, onReload func(*SentinelConfig)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cm.reloadConfig(); err != nil {
					logger.Errorf(ctx, "Failed to reload sentinel config: %v", err)
					continue
				}
				if onReload != nil {
					onReload(cm.GetConfig())
				}
			}
		}
	}()
}

// reloadConfig 重新加载配置文件
func (cm *ConfigManager) reloadConfig() error {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	newConfig, err := ParseSentinelConfig(data)
	if err != nil {
		return err
	}

	cm.mutex.Lock()
	cm.config = newConfig
	cm.mutex.Unlock()

	logger.Debug(context.Background(), "Sentinel config reloaded")
	return nil
}

// MatchKey 资源匹配键：METHOD path，未配置方法时为 * path
func (rc *ResourceConfig) MatchKey() string {
	method := strings.ToUpper(rc.Method)
	if method == "" {
		method = "*"
	}
	return method + " " + rc.Path
}

// ToFlowRules 将配置转换为Sentinel流控规则
func (rc *ResourceConfig) ToFlowRules() []*flow.Rule {
	if !rc.Enabled || !rc.FlowRule.Enabled {
		return nil
	}

	return []*flow.Rule{
		{
			Resource:               rc.Name,
			TokenCalculateStrategy: flow.Direct,
			ControlBehavior:        getControlBehavior(rc.FlowRule.ControlBehavior),
			Threshold:              rc.FlowRule.Threshold,
			MaxQueueingTimeMs:      uint32(rc.FlowRule.MaxQueueingTimeMs),
			StatIntervalInMs:       1000,
		},
	}
}

// ToCircuitBreakerRules 将配置转换为Sentinel熔断规则
func (rc *ResourceConfig) ToCircuitBreakerRules(globalConfig SentinelConfig) []*circuitbreaker.Rule {
	if !rc.Enabled || !rc.CircuitBreakerRule.Enabled {
		return nil
	}

	strategy := circuitbreaker.SlowRequestRatio
	switch rc.CircuitBreakerRule.Strategy {
	case "slow_request_ratio":
		strategy = circuitbreaker.SlowRequestRatio
	case "error_ratio":
		strategy = circuitbreaker.ErrorRatio
	case "error_count":
		strategy = circuitbreaker.ErrorCount
	default:
		strategy = circuitbreaker.SlowRequestRatio
	}

	retryTimeoutMs := globalConfig.Sentinel.GlobalCircuitBreaker.RetryTimeoutMs
	if retryTimeoutMs == 0 {
		retryTimeoutMs = 5000 // 默认5秒
	}

	minRequestAmount := rc.CircuitBreakerRule.MinRequestAmount
	if minRequestAmount == 0 {
		minRequestAmount = globalConfig.Sentinel.GlobalCircuitBreaker.MinRequestAmount
		if minRequestAmount == 0 {
			minRequestAmount = 10 // 默认10次请求
		}
	}

	statIntervalMs := rc.CircuitBreakerRule.StatIntervalMs
	if statIntervalMs == 0 {
		statIntervalMs = globalConfig.Sentinel.GlobalCircuitBreaker.StatIntervalMs
		if statIntervalMs == 0 {
			statIntervalMs = 5000 // 默认5秒
		}
	}

	return []*circuitbreaker.Rule{
		{
			Resource:         rc.Name,
			Strategy:         strategy,
			RetryTimeoutMs:   retryTimeoutMs,
			MinRequestAmount: minRequestAmount,
			StatIntervalMs:   statIntervalMs,
			MaxAllowedRtMs:   rc.CircuitBreakerRule.MaxAllowedRtMs,
			Threshold:        rc.CircuitBreakerRule.ErrorRatioThreshold,
		},
	}
}

// getControlBehavior 将字符串控制行为转换为Sentinel控制行为
func getControlBehavior(behavior string) flow.ControlBehavior {
	switch behavior {
	case "reject":
		return flow.Reject
	case "throttle":
		return flow.Throttling
	default:
		return flow.Reject
	}
}

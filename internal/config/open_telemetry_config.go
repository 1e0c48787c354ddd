package config

import (
	"fmt"
	"time"
)

const (
	OtelProtocolGRPC = "grpc"
	OtelProtocolHTTP = "http/protobuf"
)

// OpenTelemetryConfig 链路追踪上报配置
type OpenTelemetryConfig struct {
	Enable   bool    `yaml:"enable"`
	Service  string  `yaml:"service"`
	Endpoint string  `yaml:"endpoint"` // OTLP collector 地址，host:port
	Protocol string  `yaml:"protocol"` // grpc 或 http/protobuf
	Sampling float64 `yaml:"sampling"` // 0.0-1.0
	Timeout  int     `yaml:"timeout"`  // 秒
}

func NewOpenTelemetryConfig() OpenTelemetryConfig {
	return OpenTelemetryConfig{
		Service:  "backoffice",
		Endpoint: "localhost:4317",
		Protocol: OtelProtocolGRPC,
		Sampling: 0.1,
		Timeout:  3,
	}
}

// SampleRatio 越界的采样率收敛到 [0, 1]
func (c OpenTelemetryConfig) SampleRatio() float64 {
	switch {
	case c.Sampling < 0:
		return 0
	case c.Sampling > 1:
		return 1
	}
	return c.Sampling
}

func (c OpenTelemetryConfig) ExportTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// UseGRPC 未识别的协议按 http/protobuf 处理
func (c OpenTelemetryConfig) UseGRPC() bool {
	return c.Protocol == OtelProtocolGRPC
}

func (c OpenTelemetryConfig) validate() error {
	if !c.Enable {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("opentelemetry.endpoint is required when tracing is enabled")
	}
	if c.Protocol != OtelProtocolGRPC && c.Protocol != OtelProtocolHTTP {
		return fmt.Errorf("opentelemetry.protocol must be %q or %q, got %q", OtelProtocolGRPC, OtelProtocolHTTP, c.Protocol)
	}
	return nil
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pinger 请求后端健康检查地址
type Pinger interface {
	Ping(ctx context.Context, path string) (int, error)
}

// BackendHealth 最近一次后端健康检查结果
type BackendHealth struct {
	Healthy    bool      `json:"healthy"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	Latency    string    `json:"latency,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// HealthService 周期检查后端可用性，/health 读取最近一次结果
type HealthService struct {
	pinger Pinger
	path   string

	mu   sync.RWMutex
	last *BackendHealth
}

func NewHealthService(pinger Pinger, path string) *HealthService {
	return &HealthService{pinger: pinger, path: path}
}

// Check 执行一次检查并记录结果；非 2xx 视为失败
func (s *HealthService) Check(ctx context.Context) error {
	start := time.Now()
	status, err := s.pinger.Ping(ctx, s.path)
	if err == nil && status/100 != 2 {
		err = errors.Errorf("backend health returned status %d", status)
	}

	result := &BackendHealth{
		Healthy:    err == nil,
		StatusCode: status,
		Latency:    time.Since(start).String(),
		CheckedAt:  time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	if err != nil {
		logger.Warn(ctx, "Backend health check failed", zap.String("path", s.path), zap.Int("status", status), zap.Error(err))
		return err
	}
	logger.Debug(ctx, "Backend health check passed", zap.String("path", s.path), zap.String("latency", result.Latency))
	return nil
}

// Last 尚未检查过时返回 nil
func (s *HealthService) Last() *BackendHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	last := *s.last
	return &last
}

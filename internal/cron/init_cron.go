// Package cron 注册控制台的后台任务：后端健康探测与会话清理。
package cron

import (
	"time"

	"github.com/ayxworxfr/go_backoffice/internal/service"
	"github.com/ayxworxfr/go_backoffice/pkg/cron"
)

const (
	TaskBackendHealth = "backend_health"
	TaskSessionSweep  = "session_sweep"
)

// Deps 后台任务依赖
type Deps struct {
	Health  *service.HealthService
	Store   Sweeper
	Loaders LoaderCounter
	Auth    IdleEvicter
	// Limiter 按 IP 限流的客户端记录，可为 nil
	Limiter IdleEvicter
	// Idle 闲置多久后回收
	Idle time.Duration
}

// NewRegistry 按名称注册任务处理函数，配置文件通过名称引用
func NewRegistry(deps Deps) *cron.TaskRegistry {
	registry := cron.NewTaskRegistry()
	registry.Register(TaskBackendHealth, backendHealth(deps.Health))
	registry.Register(TaskSessionSweep, sessionSweep(deps.Store, deps.Loaders, deps.Auth, deps.Limiter, deps.Idle))
	return registry
}

func InitCronTask(tasks []cron.TaskConfig, deps Deps) (*cron.TaskManager, error) {
	manager := cron.NewTaskManager()
	if len(tasks) == 0 {
		return manager, nil
	}
	if err := manager.LoadTasks(tasks, NewRegistry(deps)); err != nil {
		return nil, err
	}
	manager.Start()
	return manager, nil
}

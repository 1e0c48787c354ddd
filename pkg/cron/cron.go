package cron

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ayxworxfr/go_backoffice/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const (
	StatusRunning  = "running"
	StatusPaused   = "paused"
	StatusNotExist = "not exist"
)

// Task 定时任务函数，ctx 在 Stop 时取消
type Task func(ctx context.Context) error

// TaskManager 定时任务管理器
type TaskManager struct {
	scheduler *cron.Cron
	tasks     map[string]*managedJob
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// managedJob 自定义任务结构
type managedJob struct {
	entryID  cron.EntryID // cron 任务ID
	task     Task         // 任务处理函数
	cronExpr string       // cron 表达式
	disabled bool         // 任务是否禁用
	lastRun  time.Time
	lastErr  error
	runs     int
}

// TaskInfo 任务状态快照
type TaskInfo struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CronExpr  string    `json:"cron_expr"`
	NextRun   time.Time `json:"next_run"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
}

// cronLogger 将 robfig/cron 的日志接到 zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Sugar().Debugw("[CRON] "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Sugar().Errorw("[CRON] "+msg, append(keysAndValues, "error", err)...)
}

// NewTaskManager 创建定时任务管理器，支持标准 cron 表达式与 @every 描述符
func NewTaskManager() *TaskManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskManager{
		scheduler: cron.New(cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		)),
		tasks:  make(map[string]*managedJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动所有任务
func (tm *TaskManager) Start() {
	tm.scheduler.Start()
	logger.Info(tm.ctx, "All scheduled tasks started", zap.Int("count", len(tm.ListTasks())))
}

// Stop 停止所有任务并等待运行中的任务结束
func (tm *TaskManager) Stop() {
	tm.cancel()
	ctx := tm.scheduler.Stop()
	<-ctx.Done()
	logger.Info(context.Background(), "All scheduled tasks stopped")
}

// AddTask 添加定时任务
func (tm *TaskManager) AddTask(name, cronExpr string, task Task) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, exists := tm.tasks[name]; exists {
		return fmt.Errorf("task %s already exists", name)
	}

	entryID, err := tm.scheduler.AddFunc(cronExpr, func() {
		tm.run(tm.ctx, name, false)
	})
	if err != nil {
		return fmt.Errorf("failed to add task %s: %w", name, err)
	}

	tm.tasks[name] = &managedJob{
		entryID:  entryID,
		task:     task,
		cronExpr: cronExpr,
	}
	logger.Info(tm.ctx, "Task added", zap.String("task", name), zap.String("expr", cronExpr))
	return nil
}

// RunTask 立即同步执行一次任务，忽略暂停状态
func (tm *TaskManager) RunTask(ctx context.Context, name string) error {
	tm.mu.RLock()
	_, exists := tm.tasks[name]
	tm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("task %s not exist", name)
	}
	return tm.run(ctx, name, true)
}

func (tm *TaskManager) run(ctx context.Context, name string, force bool) error {
	tm.mu.RLock()
	job, ok := tm.tasks[name]
	if !ok || (job.disabled && !force) {
		tm.mu.RUnlock()
		return nil
	}
	task := job.task
	tm.mu.RUnlock()

	start := time.Now()
	err := task(ctx)

	tm.mu.Lock()
	job.lastRun = start
	job.lastErr = err
	job.runs++
	tm.mu.Unlock()

	if err != nil {
		logger.Error(ctx, "[TASK] failed", zap.String("task", name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	} else {
		logger.Debug(ctx, "[TASK] done", zap.String("task", name), zap.Duration("elapsed", time.Since(start)))
	}
	return err
}

// RemoveTask 移除定时任务
func (tm *TaskManager) RemoveTask(name string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	job, exists := tm.tasks[name]
	if !exists {
		logger.Warn(tm.ctx, "Attempt to remove non-existent task", zap.String("task", name))
		return false
	}
	tm.scheduler.Remove(job.entryID)
	delete(tm.tasks, name)
	logger.Info(tm.ctx, "Task removed", zap.String("task", name))
	return true
}

// PauseTask 暂停定时任务
func (tm *TaskManager) PauseTask(name string) bool {
	return tm.setDisabled(name, true)
}

// ResumeTask 恢复定时任务
func (tm *TaskManager) ResumeTask(name string) bool {
	return tm.setDisabled(name, false)
}

func (tm *TaskManager) setDisabled(name string, disabled bool) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	job, exists := tm.tasks[name]
	if !exists {
		logger.Warn(tm.ctx, "Attempt to toggle non-existent task", zap.String("task", name))
		return false
	}
	job.disabled = disabled
	logger.Info(tm.ctx, "Task toggled", zap.String("task", name), zap.Bool("paused", disabled))
	return true
}

// GetTaskStatus 获取任务状态
func (tm *TaskManager) GetTaskStatus(name string) string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if job, exists := tm.tasks[name]; exists {
		if job.disabled {
			return StatusPaused
		}
		return StatusRunning
	}
	return StatusNotExist
}

// ListTasks 获取所有任务信息，按名称排序
func (tm *TaskManager) ListTasks() []TaskInfo {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	now := time.Now()
	infos := make([]TaskInfo, 0, len(tm.tasks))
	for name, job := range tm.tasks {
		info := TaskInfo{
			Name:     name,
			Status:   StatusRunning,
			CronExpr: job.cronExpr,
			LastRun:  job.lastRun,
			Runs:     job.runs,
		}
		if job.disabled {
			info.Status = StatusPaused
		}
		if job.lastErr != nil {
			info.LastError = job.lastErr.Error()
		}
		if spec, err := cron.ParseStandard(job.cronExpr); err == nil {
			info.NextRun = spec.Next(now)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// TaskConfig 配置中的单个任务
type TaskConfig struct {
	Name     string `yaml:"name"`
	CronExpr string `yaml:"cron_expr"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// TaskRegistry 任务注册表，用于映射任务名称到处理函数
type TaskRegistry struct {
	tasks map[string]Task
}

// NewTaskRegistry 创建任务注册表
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasks: make(map[string]Task),
	}
}

// Register 注册任务处理函数
func (tr *TaskRegistry) Register(name string, task Task) {
	tr.tasks[name] = task
}

// LoadTasksFromYAML 从YAML文件加载任务
func (tm *TaskManager) LoadTasksFromYAML(filePath string, registry *TaskRegistry) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read YAML file: %w", err)
	}

	return tm.LoadTasksFromYAMLBytes(data, registry)
}

// LoadTasksFromYAMLBytes 从YAML字节数据加载任务，未知字段视为错误
func (tm *TaskManager) LoadTasksFromYAMLBytes(data []byte, registry *TaskRegistry) error {
	var taskConfigs []TaskConfig
	if err := yaml.UnmarshalStrict(data, &taskConfigs); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return tm.LoadTasks(taskConfigs, registry)
}

// LoadTasks 按名称将配置绑定到已注册的处理函数；未注册或表达式错误的任务只记录日志
func (tm *TaskManager) LoadTasks(taskConfigs []TaskConfig, registry *TaskRegistry) error {
	for _, config := range taskConfigs {
		if config.Disabled {
			logger.Info(tm.ctx, "Skipping disabled task", zap.String("task", config.Name))
			continue
		}

		task, exists := registry.tasks[config.Name]
		if !exists {
			logger.Warn(tm.ctx, "Task has no registered handler", zap.String("task", config.Name))
			continue
		}

		if err := tm.AddTask(config.Name, config.CronExpr, task); err != nil {
			logger.Error(tm.ctx, "Failed to load task", zap.String("task", config.Name), zap.Error(err))
			continue
		}
	}
	return nil
}

package table

import (
	"sync"
	"time"
)

// Key 加载器按 (会话, 表格) 区分
type Key struct {
	Session string
	Table   string
}

// Registry 保存每个会话每张表格的加载器
type Registry struct {
	opts Options

	mu      sync.Mutex
	loaders map[Key]*Loader
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:    opts.withDefaults(),
		loaders: make(map[Key]*Loader),
	}
}

// Get 返回已有的加载器；不存在时用 fetcher 创建并立即发出第一次请求
func (r *Registry) Get(sid, table, endpoint string, fetcher Fetcher) *Loader {
	key := Key{Session: sid, Table: table}

	r.mu.Lock()
	defer r.mu.Unlock()
	if loader, ok := r.loaders[key]; ok {
		return loader
	}
	loader := NewLoader(fetcher, endpoint, r.opts)
	r.loaders[key] = loader
	loader.Refetch()
	return loader
}

// Lookup 只查找，不创建
func (r *Registry) Lookup(sid, table string) (*Loader, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loader, ok := r.loaders[Key{Session: sid, Table: table}]
	return loader, ok
}

// DropSession 关闭并移除会话的所有加载器
func (r *Registry) DropSession(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, loader := range r.loaders {
		if key.Session == sid {
			loader.Close()
			delete(r.loaders, key)
		}
	}
}

// EvictIdle 回收超过 idle 未使用的加载器，返回回收数量
func (r *Registry) EvictIdle(idle time.Duration) int {
	deadline := time.Now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for key, loader := range r.loaders {
		if loader.IdleSince().Before(deadline) {
			loader.Close()
			delete(r.loaders, key)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loaders)
}

// Close 关闭全部加载器
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, loader := range r.loaders {
		loader.Close()
		delete(r.loaders, key)
	}
}

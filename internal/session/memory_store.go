package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	values   map[string]string
	expireAt time.Time
}

// MemoryStore 进程内存储，重启即丢失
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[sid]
	if !ok || !entry.expireAt.After(s.now()) {
		return "", false, nil
	}
	value, ok := entry.values[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[sid]
	if !ok || !entry.expireAt.After(now) {
		entry = &memoryEntry{values: make(map[string]string)}
		s.entries[sid] = entry
	}
	entry.values[key] = value
	entry.expireAt = expireAt(now, s.ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sid]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(entry.values, key)
	}
	if len(entry.values) == 0 {
		delete(s.entries, sid)
	}
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for sid, entry := range s.entries {
		if !entry.expireAt.After(now) {
			delete(s.entries, sid)
			removed++
		}
	}
	return removed, nil
}

// Len 当前会话数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	return nil
}

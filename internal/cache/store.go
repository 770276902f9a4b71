// Package cache 按文档内容校验和缓存版面检测结果
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pdf-layout-translator/internal/types"
)

// Store 键值存储，需支持并发访问
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetEX(ctx context.Context, key string, ttl time.Duration, value string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore 进程内存储，过期条目在读取时清除
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// SetEX ttl <= 0 表示永不过期
func (m *MemoryStore) SetEX(ctx context.Context, key string, ttl time.Duration, value string) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Len 当前条目数（含未清理的过期条目）
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// NewStore 按配置创建存储；"none" 返回 nil，调用方跳过缓存
func NewStore(cfg types.CacheConfig) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		s, err := NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "file":
		s, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache store %q", cfg.Store)
	}
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const fileStoreName = "layout_cache.json"

// fileEntry 缓存文件中的一条记录
type fileEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type fileData struct {
	Version string      `json:"version"`
	Entries []fileEntry `json:"entries"`
}

// FileStore 单个 JSON 文件的存储，每次写入都落盘
type FileStore struct {
	path    string
	entries map[string]fileEntry
	mu      sync.RWMutex
	now     func() time.Time
}

// NewFileStore 在 dir 下打开或创建缓存文件
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		dir = filepath.Join(base, "pdf-layout-translator")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	s := &FileStore{
		path:    filepath.Join(dir, fileStoreName),
		entries: make(map[string]fileEntry),
		now:     time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path 缓存文件路径
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	var f fileData
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}
	now := s.now()
	for _, e := range f.Entries {
		if e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt) {
			s.entries[e.Key] = e
		}
	}
	return nil
}

// save 调用方需持有写锁
func (s *FileStore) save() error {
	f := fileData{Version: "1.0", Entries: make([]fileEntry, 0, len(s.entries))}
	for _, e := range s.entries {
		f.Entries = append(f.Entries, e)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.ExpiresAt.IsZero() && !s.now().Before(e.ExpiresAt) {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *FileStore) SetEX(ctx context.Context, key string, ttl time.Duration, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := fileEntry{Key: key, Value: value, CreatedAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	s.entries[key] = e
	for k, old := range s.entries {
		if !old.ExpiresAt.IsZero() && !now.Before(old.ExpiresAt) {
			delete(s.entries, k)
		}
	}
	return s.save()
}

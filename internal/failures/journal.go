// Package failures 记录翻译失败的文档，供命令行查看与重试
package failures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const journalFile = "failures.json"

// Record 一条失败记录，同一文档再次失败时覆盖并累加 Attempts
type Record struct {
	Document  string    `json:"document"` // 文件名
	JobID     string    `json:"job_id"`
	Phase     string    `json:"phase"` // 出错阶段：detect/composite/translate/render
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
}

// Journal 以 JSON 文件持久化的失败记录
type Journal struct {
	baseDir string
	mu      sync.RWMutex
	records map[string]*Record // key: Document
	now     func() time.Time
}

// Open 打开（或创建）baseDir 下的失败记录；baseDir 为空时使用 ~/.pdf-layout-translator
func Open(baseDir string) (*Journal, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".pdf-layout-translator")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{
		baseDir: baseDir,
		records: make(map[string]*Record),
		now:     time.Now,
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// Path 记录文件路径
func (j *Journal) Path() string {
	return filepath.Join(j.baseDir, journalFile)
}

// RecordFailure 记录失败
func (j *Journal) RecordFailure(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = j.now()
	}
	r.Attempts = 1
	if existing, ok := j.records[r.Document]; ok {
		r.Attempts = existing.Attempts + 1
	}
	j.records[r.Document] = &r
	return j.save()
}

// Resolve 文档翻译成功后移除其失败记录；没有记录时不写文件
func (j *Journal) Resolve(document string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.records[document]; !ok {
		return nil
	}
	delete(j.records, document)
	return j.save()
}

// List 按时间倒序返回记录副本
func (j *Journal) List() []Record {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]Record, 0, len(j.records))
	for _, r := range j.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Timestamp.Equal(out[b].Timestamp) {
			return out[a].Document < out[b].Document
		}
		return out[a].Timestamp.After(out[b].Timestamp)
	})
	return out
}

// Get 获取某个文档的记录
func (j *Journal) Get(document string) (Record, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	r, ok := j.records[document]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Clear 清除所有记录
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records = make(map[string]*Record)
	return j.save()
}

func (j *Journal) load() error {
	data, err := os.ReadFile(j.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read journal: %w", err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	for _, r := range records {
		j.records[r.Document] = r
	}
	return nil
}

func (j *Journal) save() error {
	records := make([]*Record, 0, len(j.records))
	for _, r := range j.records {
		records = append(records, r)
	}
	sort.Slice(records, func(a, b int) bool { return records[a].Document < records[b].Document })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}
	if err := os.WriteFile(j.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	return nil
}

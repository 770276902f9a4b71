// Package jobs 任务边界：校验请求、排队并由固定数量的 worker 执行翻译流水线
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdf-layout-translator/internal/config"
	"pdf-layout-translator/internal/failures"
	"pdf-layout-translator/internal/fonts"
	"pdf-layout-translator/internal/languages"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/pipeline"
	"pdf-layout-translator/internal/types"
)

// State 任务状态
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// JobID 任务标识
type JobID string

// PDFContentType 唯一接受的上传类型
const PDFContentType = "application/pdf"

// ReasonRevoked 排队中被撤销的任务的失败原因
const ReasonRevoked = "revoked"

var (
	ErrNotFound  = errors.New("job not found")
	ErrQueueFull = errors.New("job queue is full")
	ErrClosed    = errors.New("job manager is shut down")
	ErrNotQueued = errors.New("job is no longer queued")
)

// SubmitRequest 提交参数；语言与字体均为显示名称，空值取默认
type SubmitRequest struct {
	Filename    string
	ContentType string
	Data        []byte
	SourceLang  string
	TargetLang  string
	FontName    string
}

const (
	DefaultSourceLang = "English"
	DefaultTargetLang = "Vietnamese"
)

// Status 任务快照；Result 只读
type Status struct {
	ID         JobID             `json:"id"`
	Filename   string            `json:"filename"`
	State      State             `json:"state"`
	Progress   pipeline.Progress `json:"progress"`
	Result     []byte            `json:"-"`
	Report     *pipeline.Report  `json:"report,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Code       types.ErrorCode   `json:"code,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
}

// Processor 执行单个文档的翻译，*pipeline.Pipeline 即实现
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) ([]byte, *pipeline.Report, error)
}

// Options 任务队列参数，零值取默认
type Options struct {
	Workers      int
	QueueSize    int
	TimeLimit    time.Duration
	SoftLimit    time.Duration
	ResultExpiry time.Duration
	// Journal 可选，记录失败文档
	Journal *failures.Journal
	Log     logger.Logger
}

const (
	DefaultWorkers      = 2
	DefaultQueueSize    = 64
	DefaultTimeLimit    = 900 * time.Second
	DefaultSoftLimit    = 840 * time.Second
	DefaultResultExpiry = time.Hour
)

// OptionsFromConfig 从配置读取队列参数
func OptionsFromConfig(cfg *types.Config) Options {
	return Options{
		Workers:      cfg.Jobs.Workers,
		QueueSize:    cfg.Jobs.QueueSize,
		TimeLimit:    config.JobTimeLimit(cfg),
		SoftLimit:    config.JobSoftLimit(cfg),
		ResultExpiry: config.ResultExpiry(cfg),
	}
}

type job struct {
	status Status
	req    pipeline.Request
	done   chan struct{}
}

// Manager 任务管理器，方法可并发调用
type Manager struct {
	proc Processor
	opts Options
	log  logger.Logger

	mu     sync.Mutex
	jobs   map[JobID]*job
	queue  chan *job
	closed bool
	stop   chan struct{}

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
	newID   func() JobID
}

// NewManager 创建管理器，调用 Start 后才开始执行
func NewManager(proc Processor, opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = DefaultTimeLimit
	}
	if opts.SoftLimit <= 0 || opts.SoftLimit >= opts.TimeLimit {
		opts.SoftLimit = opts.TimeLimit * 14 / 15
	}
	if opts.ResultExpiry <= 0 {
		opts.ResultExpiry = DefaultResultExpiry
	}
	log := opts.Log
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		proc:    proc,
		opts:    opts,
		log:     log,
		jobs:    make(map[JobID]*job),
		queue:   make(chan *job, opts.QueueSize),
		stop:    make(chan struct{}),
		baseCtx: ctx,
		cancel:  cancel,
		now:     time.Now,
		newID:   func() JobID { return JobID(uuid.NewString()) },
	}
}

// Start 启动 worker 与过期清理；每个 worker 一次只取一个任务
func (m *Manager) Start() {
	for i := 0; i < m.opts.Workers; i++ {
		m.wg.Add(1)
		go m.worker(i + 1)
	}
	m.wg.Add(1)
	go m.janitor()
	m.log.Info("job workers started",
		logger.Int("workers", m.opts.Workers),
		logger.Int("queueSize", m.opts.QueueSize),
		logger.Duration("timeLimit", m.opts.TimeLimit))
}

// Shutdown 停止接收新任务并等待队列清空；ctx 结束时中止运行中的任务
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
		close(m.stop)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

// Submit 校验并入队，校验失败返回 INVALID_INPUT 的 AppError
func (m *Manager) Submit(req SubmitRequest) (JobID, error) {
	preq, err := validate(req)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	j := &job{
		status: Status{
			ID:        m.newID(),
			Filename:  req.Filename,
			State:     StateQueued,
			CreatedAt: m.now(),
		},
		req:  preq,
		done: make(chan struct{}),
	}
	select {
	case m.queue <- j:
	default:
		return "", ErrQueueFull
	}
	m.jobs[j.status.ID] = j
	m.log.Info("job queued",
		logger.String("jobId", string(j.status.ID)),
		logger.String("filename", req.Filename),
		logger.String("source", preq.Source),
		logger.String("target", preq.Target),
		logger.String("font", preq.Preset.Name))
	return j.status.ID, nil
}

func validate(req SubmitRequest) (pipeline.Request, error) {
	if req.ContentType != PDFContentType {
		return pipeline.Request{}, types.NewAppError(types.ErrInvalidInput, "File must be a PDF", nil)
	}
	if len(req.Data) == 0 {
		return pipeline.Request{}, types.NewAppError(types.ErrInvalidInput, "File is empty", nil)
	}
	source := firstNonEmpty(req.SourceLang, DefaultSourceLang)
	target := firstNonEmpty(req.TargetLang, DefaultTargetLang)
	src, tgt, err := languages.ResolvePair(source, target)
	if err != nil {
		return pipeline.Request{}, types.NewAppError(types.ErrInvalidInput, err.Error(), nil)
	}
	preset, err := fonts.Lookup(firstNonEmpty(req.FontName, fonts.DefaultPreset))
	if err != nil {
		return pipeline.Request{}, types.NewAppError(types.ErrInvalidInput, err.Error(), nil)
	}
	return pipeline.Request{PDF: req.Data, Source: src, Target: tgt, Preset: preset}, nil
}

func firstNonEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Status 返回任务快照；过期或未知任务返回 ErrNotFound
func (m *Manager) Status(id JobID) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return Status{}, ErrNotFound
	}
	return j.status, nil
}

// Wait 阻塞到任务进入终态
func (m *Manager) Wait(ctx context.Context, id JobID) (Status, error) {
	m.mu.Lock()
	j, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return Status{}, ErrNotFound
	}
	select {
	case <-j.done:
		return m.Status(id)
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Revoke 撤销尚未开始的任务
func (m *Manager) Revoke(id JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.status.State != StateQueued {
		return ErrNotQueued
	}
	m.failLocked(j, types.ErrCanceled, ReasonRevoked)
	m.log.Info("job revoked", logger.String("jobId", string(id)))
	return nil
}

func (m *Manager) worker(n int) {
	defer m.wg.Done()
	for j := range m.queue {
		m.run(n, j)
	}
}

func (m *Manager) run(worker int, j *job) {
	m.mu.Lock()
	if j.status.State != StateQueued {
		m.mu.Unlock()
		return
	}
	j.status.State = StateProcessing
	j.status.StartedAt = m.now()
	id := j.status.ID
	req := j.req
	m.mu.Unlock()

	log := m.log.With(logger.String("jobId", string(id)), logger.Int("worker", worker))
	log.Info("job started", logger.String("filename", j.status.Filename))

	ctx, cancel := context.WithTimeout(m.baseCtx, m.opts.TimeLimit)
	defer cancel()
	soft := time.AfterFunc(m.opts.SoftLimit, func() {
		log.Warn("job exceeded soft time limit", logger.Duration("softLimit", m.opts.SoftLimit))
	})
	defer soft.Stop()

	req.Progress = func(p pipeline.Progress) {
		m.mu.Lock()
		j.status.Progress = p
		m.mu.Unlock()
	}
	out, report, err := m.process(ctx, log, req)
	if err != nil {
		code, reason := failureReason(err)
		log.Error("job failed", err, logger.String("code", string(code)))
		m.journal(j, code, reason)
		m.mu.Lock()
		j.status.Report = report
		m.failLocked(j, code, reason)
		m.mu.Unlock()
		return
	}

	log.Info("job succeeded", logger.Int("bytes", len(out)))
	if m.opts.Journal != nil {
		if err := m.opts.Journal.Resolve(j.status.Filename); err != nil {
			log.Warn("failed to update failure journal", logger.Err(err))
		}
	}
	m.mu.Lock()
	j.req.PDF = nil
	j.status.Report = report
	j.status.State = StateSucceeded
	j.status.Result = out
	j.status.FinishedAt = m.now()
	close(j.done)
	m.mu.Unlock()
}

// process 处理器 panic 时转为普通错误，worker 继续消费队列
func (m *Manager) process(ctx context.Context, log logger.Logger, req pipeline.Request) (out []byte, report *pipeline.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("processor panicked", nil, logger.Any("panic", r))
			out, report, err = nil, nil, fmt.Errorf("processor panic: %v", r)
		}
	}()
	return m.proc.Process(ctx, req)
}

func (m *Manager) failLocked(j *job, code types.ErrorCode, reason string) {
	j.status.State = StateFailed
	j.status.Code = code
	j.status.Reason = reason
	j.status.FinishedAt = m.now()
	j.req.PDF = nil
	close(j.done)
}

func (m *Manager) journal(j *job, code types.ErrorCode, reason string) {
	if m.opts.Journal == nil {
		return
	}
	m.mu.Lock()
	rec := failures.Record{
		Document: j.status.Filename,
		JobID:    string(j.status.ID),
		Phase:    string(j.status.Progress.Phase),
		Code:     string(code),
		Message:  reason,
		Source:   j.req.Source,
		Target:   j.req.Target,
	}
	m.mu.Unlock()
	if err := m.opts.Journal.RecordFailure(rec); err != nil {
		m.log.Warn("failed to record job failure", logger.String("jobId", rec.JobID), logger.Err(err))
	}
}

// failureReason 面向调用方的原因只取 AppError 的 Message
func failureReason(err error) (types.ErrorCode, string) {
	var appErr *types.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.Code, appErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrTimeout, "processing time limit exceeded"
	case errors.Is(err, context.Canceled):
		return types.ErrCanceled, "processing canceled"
	}
	return types.ErrInternal, "internal error"
}

func (m *Manager) janitor() {
	defer m.wg.Done()
	interval := m.opts.ResultExpiry / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.log.Debug("expired job results removed", logger.Int("count", n))
			}
		}
	}
}

// Sweep 删除结束时间超过保留期的任务，返回删除数量
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.opts.ResultExpiry)
	n := 0
	for id, j := range m.jobs {
		if j.status.State.Terminal() && j.status.FinishedAt.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n
}

// Len 当前保留的任务数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (s Status) String() string {
	if s.State == StateFailed {
		return fmt.Sprintf("%s %s: %s", s.ID, s.State, s.Reason)
	}
	return fmt.Sprintf("%s %s", s.ID, s.State)
}

// Package logger 提供翻译流水线使用的结构化日志。
// 支持文件输出与按大小轮转、纯控制台输出、以及携带固定字段的子 logger。
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level 日志级别
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel 将 "debug"/"info"/"warn"/"error" 解析为 Level，未知值返回 LevelInfo 和错误
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Field 结构化日志的键值对
type Field struct {
	Key   string
	Value interface{}
}

func String(key string, value string) Field      { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field        { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field    { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field    { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }

// Err 创建 error 字段
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger 日志接口
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	// With 返回一个在每条日志上附加 fields 的子 logger，共享底层输出
	With(fields ...Field) Logger
	SetLevel(level Level)
	Close() error
}

// Config logger 配置
type Config struct {
	// LogFilePath 为空时只输出到控制台
	LogFilePath string
	// MaxFileSize 单个日志文件的最大字节数，超过后轮转
	MaxFileSize int64
	MaxBackups  int
	Level       Level
	// EnableConsole 同时输出到 stderr
	EnableConsole bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LogFilePath:   "pdf-layout-translator.log",
		MaxFileSize:   10 * 1024 * 1024,
		MaxBackups:    5,
		Level:         LevelInfo,
		EnableConsole: false,
	}
}

// sink 是多个 DefaultLogger（父与子）共享的输出端
type sink struct {
	mu       sync.Mutex
	config   *Config
	file     *os.File
	fileSize int64
	extra    io.Writer
	level    Level
}

// DefaultLogger 默认实现
type DefaultLogger struct {
	sink       *sink
	fields     []Field
	timeFormat string
}

// NewDefaultLogger 按配置创建 logger
func NewDefaultLogger(config *Config) (*DefaultLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	s := &sink{config: config, level: config.Level}
	if config.EnableConsole || config.LogFilePath == "" {
		s.extra = os.Stderr
	}

	if config.LogFilePath != "" {
		if dir := filepath.Dir(config.LogFilePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		if err := s.openFile(); err != nil {
			return nil, err
		}
	}

	return &DefaultLogger{sink: s, timeFormat: "2006-01-02 15:04:05.000"}, nil
}

// NewWriterLogger 创建只写入 w 的 logger，不做轮转。worker 与测试使用
func NewWriterLogger(w io.Writer, level Level) *DefaultLogger {
	return &DefaultLogger{
		sink:       &sink{config: &Config{Level: level}, extra: w, level: level},
		timeFormat: "2006-01-02 15:04:05.000",
	}
}

func (s *sink) openFile() error {
	file, err := os.OpenFile(s.config.LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	s.file = file
	s.fileSize = info.Size()
	return nil
}

func (s *sink) write(level Level, entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}
	if s.file != nil {
		if s.config.MaxFileSize > 0 && s.fileSize+int64(len(entry)) > s.config.MaxFileSize {
			s.rotate()
		}
		if s.file != nil {
			n, _ := s.file.WriteString(entry)
			s.fileSize += int64(n)
		}
	}
	if s.extra != nil {
		io.WriteString(s.extra, entry)
	}
}

// rotate: x.log -> x.log.1 -> x.log.2 ...，超过 MaxBackups 的删除
func (s *sink) rotate() {
	s.file.Close()
	s.file = nil

	path := s.config.LogFilePath
	os.Remove(fmt.Sprintf("%s.%d", path, s.config.MaxBackups))
	for i := s.config.MaxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}
	if s.config.MaxBackups > 0 {
		os.Rename(path, path+".1")
	} else {
		os.Remove(path)
	}

	if err := s.openFile(); err != nil {
		fmt.Fprintf(os.Stderr, "logger: reopen after rotation failed: %v\n", err)
	}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, nil, fields) }
func (l *DefaultLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, nil, fields) }
func (l *DefaultLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, nil, fields) }

// Error 记录错误并附带调用栈
func (l *DefaultLogger) Error(msg string, err error, fields ...Field) {
	l.log(LevelError, msg, err, fields)
}

// With 返回附加了固定字段的子 logger
func (l *DefaultLogger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &DefaultLogger{sink: l.sink, fields: merged, timeFormat: l.timeFormat}
}

func (l *DefaultLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Close 关闭日志文件。子 logger 共享同一文件，关闭任一即关闭全部
func (l *DefaultLogger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file != nil {
		err := l.sink.file.Close()
		l.sink.file = nil
		return err
	}
	return nil
}

func (l *DefaultLogger) log(level Level, msg string, err error, fields []Field) {
	l.sink.write(level, l.format(level, msg, err, fields))
}

func (l *DefaultLogger) format(level Level, msg string, err error, fields []Field) string {
	var sb strings.Builder
	sb.WriteString(time.Now().Format(l.timeFormat))
	sb.WriteString(" [")
	sb.WriteString(level.String())
	sb.WriteString("] ")
	sb.WriteString(msg)

	if err != nil {
		fmt.Fprintf(&sb, " error=%q", err.Error())
	}
	for _, f := range l.fields {
		writeField(&sb, f)
	}
	for _, f := range fields {
		writeField(&sb, f)
	}
	if level == LevelError {
		sb.WriteString("\n")
		sb.WriteString(stackTrace())
	}
	sb.WriteString("\n")
	return sb.String()
}

func writeField(sb *strings.Builder, f Field) {
	sb.WriteString(" ")
	sb.WriteString(f.Key)
	sb.WriteString("=")
	if s, ok := f.Value.(string); ok && strings.ContainsAny(s, " \t\n\"") {
		fmt.Fprintf(sb, "%q", s)
		return
	}
	fmt.Fprintf(sb, "%v", f.Value)
}

func stackTrace() string {
	var sb strings.Builder
	sb.WriteString("Stack trace:\n")

	const skip = 5
	for i := skip; i-skip <= 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		name := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		if strings.HasPrefix(name, "runtime.") || strings.HasPrefix(name, "testing.") {
			continue
		}
		fmt.Fprintf(&sb, "  %s:%d %s\n", file, line, name)
	}
	return sb.String()
}

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// Init 初始化全局 logger
func Init(config *Config) error {
	l, err := NewDefaultLogger(config)
	if err != nil {
		return err
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		globalLogger.Close()
	}
	globalLogger = l
	return nil
}

// GetLogger 返回全局 logger，未初始化时返回 no-op
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return noopLogger{}
	}
	return globalLogger
}

func SetGlobalLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Close 关闭全局 logger
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		return nil
	}
	err := globalLogger.Close()
	globalLogger = nil
	return err
}

func Debug(msg string, fields ...Field)          { GetLogger().Debug(msg, fields...) }
func Info(msg string, fields ...Field)           { GetLogger().Info(msg, fields...) }
func Warn(msg string, fields ...Field)           { GetLogger().Warn(msg, fields...) }
func Error(msg string, err error, fields ...Field) { GetLogger().Error(msg, err, fields...) }

// With 基于全局 logger 创建子 logger
func With(fields ...Field) Logger { return GetLogger().With(fields...) }

// Nop 返回丢弃所有日志的 logger
func Nop() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field)        {}
func (noopLogger) Info(string, ...Field)         {}
func (noopLogger) Warn(string, ...Field)         {}
func (noopLogger) Error(string, error, ...Field) {}
func (n noopLogger) With(...Field) Logger        { return n }
func (noopLogger) SetLevel(Level)                {}
func (noopLogger) Close() error                  { return nil }

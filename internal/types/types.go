// Package types 定义跨包共享的配置结构与错误类型
package types

// Config 应用配置，对应 config.json
type Config struct {
	LLM        LLMConfig        `json:"llm"`
	Fallback   FallbackConfig   `json:"fallback"`
	Batch      BatchConfig      `json:"batch"`
	Cache      CacheConfig      `json:"cache"`
	Layout     LayoutConfig     `json:"layout"`
	Fitter     FitterConfig     `json:"fitter"`
	Insertion  InsertionConfig  `json:"insertion"`
	Rasterizer RasterizerConfig `json:"rasterizer"`
	Detector   DetectorConfig   `json:"detector"`
	Jobs       JobsConfig       `json:"jobs"`
	FontsDir   string           `json:"fonts_dir"`
	LogLevel   string           `json:"log_level"`
	LogFile    string           `json:"log_file"`
}

// LLMConfig 结构化翻译（主策略）配置
type LLMConfig struct {
	// Backend: "eino"（默认，OpenAI 兼容）、"openai"、"gemini"
	Backend     string  `json:"backend"`
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	GeminiKey   string  `json:"gemini_api_key"`
	GeminiModel string  `json:"gemini_model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TimeoutSec  int     `json:"timeout_sec"`
}

// FallbackConfig 逐条机器翻译（回退策略）配置
type FallbackConfig struct {
	Endpoint   string `json:"endpoint"`
	MaxRetries int    `json:"max_retries"`
	RetryMs    int    `json:"retry_ms"`
	TimeoutSec int    `json:"timeout_sec"`
}

type BatchConfig struct {
	Size    int `json:"size"`
	DelayMs int `json:"delay_ms"`
}

type CacheConfig struct {
	// Store: "redis"、"file"、"memory"、"none"
	Store     string `json:"store"`
	RedisURL  string `json:"redis_url"`
	Dir       string `json:"dir"`
	Namespace string `json:"namespace"`
	TTLHours  int    `json:"ttl_hours"`
}

type LayoutConfig struct {
	SmallPadding float64 `json:"small_padding"`
	LargePadding float64 `json:"large_padding"`
}

type FitterConfig struct {
	MinSize   float64 `json:"min_size"`
	MaxSize   float64 `json:"max_size"`
	Epochs    int     `json:"epochs"`
	Tolerance float64 `json:"tolerance"`
}

type InsertionConfig struct {
	OverflowShrink float64 `json:"overflow_shrink"`
	ErrorShrink    float64 `json:"error_shrink"`
	MaxAttempts    int     `json:"max_attempts"`
}

type RasterizerConfig struct {
	PdftoppmPath string  `json:"pdftoppm_path"`
	Zoom         float64 `json:"zoom"`
}

type DetectorConfig struct {
	// Kind: "pymupdf4llm"（默认）或 "rows"（基于文本行的规则回退）
	Kind       string `json:"kind"`
	PythonPath string `json:"python_path"`
	TimeoutSec int    `json:"timeout_sec"`
}

type JobsConfig struct {
	Workers         int `json:"workers"`
	QueueSize       int `json:"queue_size"`
	TimeLimitSec    int `json:"time_limit_sec"`
	SoftLimitSec    int `json:"soft_limit_sec"`
	ResultExpirySec int `json:"result_expiry_sec"`
}

// ErrorCode 错误代码
type ErrorCode string

const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrDetect       ErrorCode = "DETECT_FAILED"
	ErrComposite    ErrorCode = "COMPOSITE_FAILED"
	ErrTranslate    ErrorCode = "TRANSLATE_FAILED"
	ErrRender       ErrorCode = "RENDER_FAILED"
	ErrTimeout      ErrorCode = "TIMEOUT"
	ErrCanceled     ErrorCode = "CANCELED"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError 带错误码的应用错误，Message 面向调用方，Cause 只用于日志
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError 创建 AppError
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// NewAppErrorWithDetails 创建带详情的 AppError
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Details: details, Cause: cause}
}

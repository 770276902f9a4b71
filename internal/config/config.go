// Package config 管理翻译流水线的配置：JSON 配置文件、.env 与环境变量覆盖。
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

const (
	DefaultConfigFileName = "config.json"

	EnvGroqAPIKey   = "GROQ_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvLLMBaseURL   = "LLM_BASE_URL"
	EnvLLMModel     = "LLM_MODEL"
	EnvLLMBackend   = "LLM_BACKEND"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvRedisURL     = "REDIS_URL"
	EnvCacheStore   = "CACHE_STORE"
	EnvFontsDir     = "FONTS_DIR"
	EnvPythonPath   = "PYTHON_PATH"
	EnvPdftoppmPath = "PDFTOPPM_PATH"
	EnvLogLevel     = "LOG_LEVEL"
	EnvWorkers      = "WORKERS"

	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "qwen/qwen3-32b"
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultMTEndpoint  = "https://translate.googleapis.com/translate_a/single"
)

// ConfigManager 负责配置的加载与保存
type ConfigManager struct {
	configPath string
	envFiles   []string
	config     *types.Config
}

// NewConfigManager 创建 ConfigManager，configPath 为空时使用 ~/.config/pdf-layout-translator/config.json
func NewConfigManager(configPath string, envFiles ...string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-layout-translator", DefaultConfigFileName)
	}
	return &ConfigManager{
		configPath: configPath,
		envFiles:   envFiles,
		config:     Default(),
	}, nil
}

// Default 返回默认配置
func Default() *types.Config {
	return &types.Config{
		LLM: types.LLMConfig{
			Backend:     "eino",
			BaseURL:     DefaultBaseURL,
			Model:       DefaultModel,
			GeminiModel: DefaultGeminiModel,
			Temperature: 0.3,
			MaxTokens:   8192,
			TimeoutSec:  120,
		},
		Fallback: types.FallbackConfig{
			Endpoint:   DefaultMTEndpoint,
			MaxRetries: 4,
			RetryMs:    1000,
			TimeoutSec: 30,
		},
		Batch: types.BatchConfig{Size: 8, DelayMs: 5000},
		Cache: types.CacheConfig{
			Store:     "memory",
			Namespace: "pdf_layout",
			TTLHours:  24 * 7,
		},
		Layout:     types.LayoutConfig{SmallPadding: 2.5, LargePadding: 3},
		Fitter:     types.FitterConfig{MinSize: 4, MaxSize: 28, Epochs: 30, Tolerance: 0.005},
		Insertion:  types.InsertionConfig{OverflowShrink: 0.996, ErrorShrink: 0.99, MaxAttempts: 100},
		Rasterizer: types.RasterizerConfig{PdftoppmPath: "pdftoppm", Zoom: 2.0},
		Detector:   types.DetectorConfig{Kind: "pymupdf4llm", PythonPath: "python3", TimeoutSec: 300},
		Jobs: types.JobsConfig{
			Workers:         2,
			QueueSize:       64,
			TimeLimitSec:    900,
			SoftLimitSec:    840,
			ResultExpirySec: 3600,
		},
		FontsDir: "fonts",
		LogLevel: "info",
	}
}

// Load 依次应用：默认值 -> 配置文件 -> .env -> 环境变量，然后校验
func (m *ConfigManager) Load() error {
	cfg := Default()

	data, err := os.ReadFile(m.configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			cfg = Default()
		} else {
			logger.Info("configuration loaded", logger.String("path", m.configPath))
		}
	case os.IsNotExist(err):
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
	default:
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	}

	m.loadEnvFiles()
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// loadEnvFiles 加载 .env；文件不存在不算错误，已存在的环境变量不会被覆盖
func (m *ConfigManager) loadEnvFiles() {
	files := m.envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.Warn("failed to load env file", logger.String("path", f), logger.Err(err))
		}
	}
}

func applyEnv(cfg *types.Config) {
	if v := firstEnv(EnvGroqAPIKey, EnvOpenAIAPIKey); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv(EnvLLMBaseURL); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv(EnvLLMModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv(EnvLLMBackend); v != "" {
		cfg.LLM.Backend = v
	}
	if v := os.Getenv(EnvGeminiAPIKey); v != "" && cfg.LLM.GeminiKey == "" {
		cfg.LLM.GeminiKey = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.Cache.RedisURL = v
		if os.Getenv(EnvCacheStore) == "" {
			cfg.Cache.Store = "redis"
		}
	}
	if v := os.Getenv(EnvCacheStore); v != "" {
		cfg.Cache.Store = v
	}
	if v := os.Getenv(EnvFontsDir); v != "" {
		cfg.FontsDir = v
	}
	if v := os.Getenv(EnvPythonPath); v != "" {
		cfg.Detector.PythonPath = v
	}
	if v := os.Getenv(EnvPdftoppmPath); v != "" {
		cfg.Rasterizer.PdftoppmPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Jobs.Workers = n
		} else {
			logger.Warn("ignoring non-numeric WORKERS", logger.String("value", v))
		}
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate 拒绝明显不合理的配置
func Validate(cfg *types.Config) error {
	var errs []error
	if cfg.Batch.Size < 1 {
		errs = append(errs, fmt.Errorf("batch.size must be >= 1, got %d", cfg.Batch.Size))
	}
	if cfg.Batch.DelayMs < 0 {
		errs = append(errs, fmt.Errorf("batch.delay_ms must be >= 0"))
	}
	if cfg.Fitter.MinSize <= 0 || cfg.Fitter.MinSize > cfg.Fitter.MaxSize {
		errs = append(errs, fmt.Errorf("fitter sizes invalid: min=%v max=%v", cfg.Fitter.MinSize, cfg.Fitter.MaxSize))
	}
	if cfg.Fitter.Epochs < 1 || cfg.Fitter.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("fitter.epochs and fitter.tolerance must be positive"))
	}
	for name, f := range map[string]float64{
		"insertion.overflow_shrink": cfg.Insertion.OverflowShrink,
		"insertion.error_shrink":    cfg.Insertion.ErrorShrink,
	} {
		if f <= 0 || f >= 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0,1), got %v", name, f))
		}
	}
	if cfg.Insertion.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("insertion.max_attempts must be >= 1"))
	}
	if cfg.Rasterizer.Zoom <= 0 {
		errs = append(errs, fmt.Errorf("rasterizer.zoom must be positive"))
	}
	switch cfg.LLM.Backend {
	case "eino", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown llm.backend %q", cfg.LLM.Backend))
	}
	switch cfg.Cache.Store {
	case "redis", "file", "memory", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown cache.store %q", cfg.Cache.Store))
	}
	switch cfg.Detector.Kind {
	case "pymupdf4llm", "rows":
	default:
		errs = append(errs, fmt.Errorf("unknown detector.kind %q", cfg.Detector.Kind))
	}
	if cfg.Jobs.Workers < 1 {
		errs = append(errs, fmt.Errorf("jobs.workers must be >= 1"))
	}
	if err := errors.Join(errs...); err != nil {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid configuration", err.Error(), err)
	}
	return nil
}

// Save 将当前配置写回配置文件
func (m *ConfigManager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}
	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

func (m *ConfigManager) GetConfig() *types.Config { return m.config }

func (m *ConfigManager) SetConfig(cfg *types.Config) { m.config = cfg }

func (m *ConfigManager) GetConfigPath() string { return m.configPath }

// BatchDelay 批次之间的等待时间
func BatchDelay(cfg *types.Config) time.Duration {
	return time.Duration(cfg.Batch.DelayMs) * time.Millisecond
}

// CacheTTL 缓存有效期
func CacheTTL(cfg *types.Config) time.Duration {
	return time.Duration(cfg.Cache.TTLHours) * time.Hour
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// JobTimeLimit 单个任务的硬超时
func JobTimeLimit(cfg *types.Config) time.Duration { return seconds(cfg.Jobs.TimeLimitSec) }

// JobSoftLimit 单个任务的软超时，只记录告警
func JobSoftLimit(cfg *types.Config) time.Duration { return seconds(cfg.Jobs.SoftLimitSec) }

// ResultExpiry 任务结果保留时间
func ResultExpiry(cfg *types.Config) time.Duration { return seconds(cfg.Jobs.ResultExpirySec) }

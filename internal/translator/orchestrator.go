package translator

import (
	"context"
	"fmt"
	"time"

	"pdf-layout-translator/internal/languages"
	"pdf-layout-translator/internal/logger"
)

const (
	// DefaultBatchSize 每批文本框数量
	DefaultBatchSize = 8
	// DefaultBatchDelay 相邻批次之间的等待，避免触发服务端限流
	DefaultBatchDelay = 5 * time.Second
)

// Orchestrator 按批次串行翻译
type Orchestrator struct {
	Primary   StructuredProvider
	Fallback  PhraseTranslator
	BatchSize int
	Delay     time.Duration
	Log       logger.Logger

	// sleep 测试时可替换
	sleep func(ctx context.Context, d time.Duration) error
}

// OrchestratorConfig 创建 Orchestrator 的参数，零值取默认
type OrchestratorConfig struct {
	Primary   StructuredProvider
	Fallback  PhraseTranslator
	BatchSize int
	Delay     time.Duration
	Log       logger.Logger
}

// NewOrchestrator 创建 Orchestrator；Primary 可以为 nil，此时直接使用回退策略
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	delay := cfg.Delay
	if delay < 0 {
		delay = 0
	}
	log := cfg.Log
	if log == nil {
		log = logger.GetLogger()
	}
	return &Orchestrator{
		Primary:   cfg.Primary,
		Fallback:  cfg.Fallback,
		BatchSize: size,
		Delay:     delay,
		Log:       log,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Batches 按 size 切分，保持原顺序
func Batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}

// BatchCount n 个单元切分后的批次数
func BatchCount(n, size int) int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return (n + size - 1) / size
}

// TranslateUnits 翻译各单元的文本，返回值与输入按位置对应
func (o *Orchestrator) TranslateUnits(ctx context.Context, units []Unit, source, target string, progress Progress) ([]string, error) {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Box.Text
	}
	return o.Translate(ctx, texts, source, target, progress)
}

// Translate source/target 为两字母代码
func (o *Orchestrator) Translate(ctx context.Context, texts []string, source, target string, progress Progress) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if o.Fallback == nil {
		return nil, fmt.Errorf("no fallback translator configured")
	}

	batches := Batches(texts, o.BatchSize)
	o.Log.Info("starting batch translation",
		logger.Int("totalUnits", len(texts)),
		logger.Int("batchCount", len(batches)),
		logger.Int("batchSize", o.BatchSize),
		logger.String("source", source),
		logger.String("target", target))

	results := make([]string, 0, len(texts))
	for i, batch := range batches {
		if i > 0 {
			if err := o.sleep(ctx, o.Delay); err != nil {
				return nil, err
			}
		}
		out, strategy, err := o.translateBatch(ctx, batch, source, target)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
		results = append(results, out...)

		o.Log.Debug("batch translated",
			logger.Int("batchIndex", i+1),
			logger.Int("totalBatches", len(batches)),
			logger.String("strategy", string(strategy)))
		if progress != nil {
			progress(i+1, len(batches), strategy)
		}
	}
	return results, nil
}

func (o *Orchestrator) translateBatch(ctx context.Context, batch []string, source, target string) ([]string, Strategy, error) {
	if o.Primary != nil {
		out, err := o.structured(ctx, batch, source, target)
		if err == nil {
			return out, StrategyStructured, nil
		}
		if ctx.Err() != nil {
			return nil, StrategyStructured, ctx.Err()
		}
		o.Log.Warn("structured translation failed, falling back to phrase MT",
			logger.String("provider", o.Primary.Name()),
			logger.Int("segments", len(batch)),
			logger.Err(err))
	}

	out, err := o.phrase(ctx, batch, source, target)
	if err != nil {
		return nil, StrategyPhrase, err
	}
	return out, StrategyPhrase, nil
}

func (o *Orchestrator) structured(ctx context.Context, batch []string, source, target string) ([]string, error) {
	prompt := BuildBatchPrompt(batch, languages.MustName(source), languages.MustName(target))
	content, err := o.Primary.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseTranslations(content, len(batch))
}

func (o *Orchestrator) phrase(ctx context.Context, batch []string, source, target string) ([]string, error) {
	out := make([]string, len(batch))
	for i, text := range batch {
		t, err := o.Fallback.Translate(ctx, text, source, target)
		if err != nil {
			return nil, fmt.Errorf("phrase translation of segment %d: %w", i+1, err)
		}
		out[i] = t
	}
	return out, nil
}

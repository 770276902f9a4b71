package pipeline

import (
	"context"
	"time"

	"pdf-layout-translator/internal/cache"
	"pdf-layout-translator/internal/config"
	"pdf-layout-translator/internal/detector"
	"pdf-layout-translator/internal/fitter"
	"pdf-layout-translator/internal/fonts"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/pdf"
	"pdf-layout-translator/internal/translator"
	"pdf-layout-translator/internal/types"
)

// New 按配置组装流水线，客户端只创建一次并在各任务间共享
func New(ctx context.Context, cfg *types.Config, log logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	inspector := pdf.NewPdfcpuInspector()
	det, err := NewDetector(cfg, inspector, log)
	if err != nil {
		return nil, err
	}

	provider, err := translator.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create llm provider", err)
	}
	if provider == nil {
		log.Warn("no llm api key configured, every batch will use phrase MT")
	}
	fallback := translator.NewGoogleTranslator(translator.GoogleTranslatorConfig{
		Endpoint:   cfg.Fallback.Endpoint,
		MaxRetries: cfg.Fallback.MaxRetries,
		RetryDelay: time.Duration(cfg.Fallback.RetryMs) * time.Millisecond,
		Timeout:    time.Duration(cfg.Fallback.TimeoutSec) * time.Second,
	})

	reinserter := pdf.NewReinserter(log)
	reinserter.OverflowShrink = cfg.Insertion.OverflowShrink
	reinserter.ErrorShrink = cfg.Insertion.ErrorShrink
	reinserter.MaxAttempts = cfg.Insertion.MaxAttempts

	params := fitter.DefaultParams
	params.MinSize = cfg.Fitter.MinSize
	params.MaxSize = cfg.Fitter.MaxSize
	params.Epochs = cfg.Fitter.Epochs
	params.Tolerance = cfg.Fitter.Tolerance

	return &Pipeline{
		Detector:   det,
		Inspector:  inspector,
		Compositor: pdf.NewCompositor(pdf.NewPopplerRasterizer(cfg.Rasterizer.PdftoppmPath), cfg.Rasterizer.Zoom, log),
		NewCanvas:  func() pdf.Canvas { return pdf.NewFpdfCanvas() },
		Fonts:      fonts.NewRegistry(cfg.FontsDir),
		Translator: translator.NewOrchestrator(translator.OrchestratorConfig{
			Primary:   provider,
			Fallback:  fallback,
			BatchSize: cfg.Batch.Size,
			Delay:     config.BatchDelay(cfg),
			Log:       log,
		}),
		Reinserter: reinserter,
		Padding:    layout.Padding{Small: cfg.Layout.SmallPadding, Large: cfg.Layout.LargePadding},
		Fitter:     params,
		Log:        log,
	}, nil
}

// NewDetector 创建带缓存的版面检测器；缓存存储不可用时退化为直接检测
func NewDetector(cfg *types.Config, sizer pdf.PageSizer, log logger.Logger) (detector.Detector, error) {
	det, err := detector.New(cfg.Detector, sizer, log)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "invalid detector config", err)
	}
	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		log.Warn("layout cache unavailable", logger.String("store", cfg.Cache.Store), logger.Err(err))
		return det, nil
	}
	if store == nil {
		return det, nil
	}
	return &detector.Cached{
		Inner: det,
		Cache: cache.NewLayoutCache(store, cfg.Cache.Namespace, config.CacheTTL(cfg), log),
	}, nil
}

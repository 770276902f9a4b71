// Package pipeline 串联版面检测、图形合成、批量翻译与译文回填，输入输出均为 PDF 字节
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pdf-layout-translator/internal/detector"
	"pdf-layout-translator/internal/fitter"
	"pdf-layout-translator/internal/fonts"
	"pdf-layout-translator/internal/languages"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/pdf"
	"pdf-layout-translator/internal/translator"
	"pdf-layout-translator/internal/types"
)

// Phase 处理阶段，用于进度上报
type Phase string

const (
	PhaseDetect    Phase = "detect"
	PhaseComposite Phase = "composite"
	PhaseTranslate Phase = "translate"
	PhaseRender    Phase = "render"
)

// Progress 阶段进度；Done/Total 仅在翻译阶段表示批次
type Progress struct {
	Phase Phase `json:"phase"`
	Done  int   `json:"done"`
	Total int   `json:"total"`
}

// Request 一次翻译请求，语言为两字母代码
type Request struct {
	PDF      []byte
	Source   string
	Target   string
	Preset   fonts.Preset
	Progress func(Progress)
}

// Report 处理统计
type Report struct {
	Pages      int
	Figures    int
	Units      int
	Inserted   int
	Blank      int
	Structured int
	Phrase     int
	Elapsed    time.Duration
}

// Inspector 打开源文档读取页数，用于入口校验
type Inspector interface {
	PageCount(src []byte) (int, error)
}

// Pipeline 各协作者在创建时注入，Process 可并发调用
type Pipeline struct {
	Detector   detector.Detector
	Inspector  Inspector
	Compositor *pdf.Compositor
	NewCanvas  func() pdf.Canvas
	Fonts      *fonts.Registry
	Translator *translator.Orchestrator
	Reinserter *pdf.Reinserter
	Padding    layout.Padding
	Fitter     fitter.Params
	Log        logger.Logger
}

// Process 执行完整流程，返回译后 PDF
func (p *Pipeline) Process(ctx context.Context, req Request) ([]byte, *Report, error) {
	start := time.Now()
	report := &Report{}
	log := p.Log.With(logger.String("source", req.Source), logger.String("target", req.Target))
	notify := func(pr Progress) {
		if req.Progress != nil {
			req.Progress(pr)
		}
	}

	if err := p.validate(req); err != nil {
		return nil, report, err
	}
	set, err := p.Fonts.Load(req.Preset)
	if err != nil {
		return nil, report, types.NewAppErrorWithDetails(types.ErrRender, "failed to load fonts", req.Preset.Name, err)
	}

	notify(Progress{Phase: PhaseDetect})
	doc, err := p.Detector.Detect(ctx, req.PDF)
	if err != nil {
		return nil, report, stageError(ctx, types.ErrDetect, "layout detection failed", err)
	}
	padded := layout.Pad(doc, p.Padding)
	report.Pages = len(padded.Pages)
	log.Info("layout ready", logger.Int("pages", report.Pages), logger.Any("classes", padded.Stats()))

	notify(Progress{Phase: PhaseComposite})
	canvas := p.NewCanvas()
	stats, err := p.Compositor.Composite(ctx, req.PDF, padded, canvas)
	if err != nil {
		return nil, report, stageError(ctx, types.ErrComposite, "failed to compose figure pages", err)
	}
	report.Figures = stats.Figures

	units := CollectUnits(padded, log)
	report.Units = len(units)
	if len(units) == 0 {
		log.Info("no translatable text, returning figure-only document")
		return p.finish(canvas, report, start, notify)
	}

	notify(Progress{Phase: PhaseTranslate, Total: translator.BatchCount(len(units), p.Translator.BatchSize)})
	translated, err := p.Translator.TranslateUnits(ctx, units, req.Source, req.Target,
		func(done, total int, s translator.Strategy) {
			if s == translator.StrategyStructured {
				report.Structured++
			} else {
				report.Phrase++
			}
			notify(Progress{Phase: PhaseTranslate, Done: done, Total: total})
		})
	if err != nil {
		return nil, report, stageError(ctx, types.ErrTranslate, "translation failed", err)
	}

	notify(Progress{Phase: PhaseRender})
	if err := p.reinsert(ctx, canvas, set, units, translated, report); err != nil {
		return nil, report, err
	}
	return p.finish(canvas, report, start, notify)
}

func (p *Pipeline) validate(req Request) error {
	if len(req.PDF) == 0 {
		return types.NewAppError(types.ErrInvalidInput, "empty document", nil)
	}
	if _, ok := languages.Name(req.Source); !ok {
		return types.NewAppError(types.ErrInvalidInput, fmt.Sprintf("Unsupported language: %s to %s", req.Source, req.Target), nil)
	}
	if _, ok := languages.Name(req.Target); !ok {
		return types.NewAppError(types.ErrInvalidInput, fmt.Sprintf("Unsupported language: %s to %s", req.Source, req.Target), nil)
	}
	if p.Inspector != nil {
		n, err := p.Inspector.PageCount(req.PDF)
		if err != nil {
			return types.NewAppError(types.ErrInvalidInput, "cannot open document", err)
		}
		if n == 0 {
			return types.NewAppError(types.ErrInvalidInput, "document has no pages", nil)
		}
	}
	return nil
}

// CollectUnits 按页序收集可翻译框；无效矩形与空文本被跳过
func CollectUnits(doc *layout.Document, log logger.Logger) []translator.Unit {
	var units []translator.Unit
	for pi, page := range doc.Pages {
		for bi, box := range page.Boxes {
			if !box.Class.IsTranslatable() {
				continue
			}
			if !box.Rect().Valid() {
				log.Debug("invalid box skipped",
					logger.Int("page", pi+1),
					logger.Int("box", bi),
					logger.String("rect", box.Rect().String()))
				continue
			}
			cb := layout.Consolidate(box)
			if !cb.HasText() {
				continue
			}
			units = append(units, translator.Unit{Page: pi + 1, Class: box.Class, Box: cb})
		}
	}
	return units
}

func (p *Pipeline) reinsert(ctx context.Context, canvas pdf.Canvas, set *fonts.Set, units []translator.Unit, translated []string, report *Report) error {
	if len(translated) != len(units) {
		return types.NewAppErrorWithDetails(types.ErrInternal, "translation count mismatch",
			fmt.Sprintf("%d units, %d translations", len(units), len(translated)), nil)
	}
	for _, f := range []*fonts.Font{set.Regular, set.Bold} {
		if err := canvas.RegisterFont(f); err != nil {
			return types.NewAppError(types.ErrRender, "failed to register font", err)
		}
	}

	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return stageError(ctx, types.ErrRender, "rendering interrupted", err)
		}
		font := set.ForHeading(u.Class.IsHeading())
		fit := p.Fitter.Fit(translated[i], u.Box.Rect, u.Class, font)
		out := p.Reinserter.Insert(canvas, pdf.Placement{
			Page:  u.Page,
			Rect:  u.Box.Rect,
			Text:  translated[i],
			Style: pdf.TextStyle{Font: font, Size: fit.Size, Color: u.Box.Color},
		})
		if out.Inserted {
			report.Inserted++
		} else {
			report.Blank++
		}
	}
	return nil
}

func (p *Pipeline) finish(canvas pdf.Canvas, report *Report, start time.Time, notify func(Progress)) ([]byte, *Report, error) {
	out, err := canvas.Bytes()
	if err != nil {
		return nil, report, types.NewAppError(types.ErrRender, "failed to write output document", err)
	}
	report.Elapsed = time.Since(start)
	p.Log.Info("document translated",
		logger.Int("pages", report.Pages),
		logger.Int("figures", report.Figures),
		logger.Int("units", report.Units),
		logger.Int("inserted", report.Inserted),
		logger.Int("blank", report.Blank),
		logger.Duration("elapsed", report.Elapsed))
	notify(Progress{Phase: PhaseRender, Done: 1, Total: 1})
	return out, report, nil
}

// stageError 超时与取消优先于阶段错误码
func stageError(ctx context.Context, code types.ErrorCode, msg string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.NewAppError(types.ErrTimeout, "processing time limit exceeded", err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return types.NewAppError(types.ErrCanceled, "processing canceled", err)
	}
	return types.NewAppError(code, msg, err)
}

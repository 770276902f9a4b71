package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

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

type fixedDetector struct {
	doc *layout.Document
	err error
}

func (d *fixedDetector) Detect(ctx context.Context, src []byte) (*layout.Document, error) {
	return d.doc, d.err
}

type blankRasterizer struct{}

func (blankRasterizer) Rasterize(ctx context.Context, src []byte, zoom float64, visit pdf.PageVisitor) error {
	return visit(0, image.NewRGBA(image.Rect(0, 0, int(640*zoom), int(800*zoom))))
}

type drawn struct {
	page int
	rect layout.Rect
}

type inserted struct {
	page int
	rect layout.Rect
	text string
	size float64
	font string
}

type spyCanvas struct {
	pages   int
	draws   []drawn
	inserts []inserted
}

func (c *spyCanvas) AddPage(w, h float64) error { c.pages++; return nil }
func (c *spyCanvas) PageCount() int             { return c.pages }
func (c *spyCanvas) DrawImage(page int, img image.Image, rect layout.Rect) error {
	c.draws = append(c.draws, drawn{page, rect})
	return nil
}
func (c *spyCanvas) RegisterFont(*fonts.Font) error { return nil }
func (c *spyCanvas) InsertTextbox(page int, rect layout.Rect, text string, style pdf.TextStyle) (float64, error) {
	c.inserts = append(c.inserts, inserted{page, rect, text, style.Size, style.Font.Name})
	return 1, nil
}
func (c *spyCanvas) Bytes() ([]byte, error) { return []byte("%PDF-spy"), nil }

type upperLLM struct{ calls int }

func (u *upperLLM) Name() string { return "upper" }
func (u *upperLLM) Complete(ctx context.Context, prompt string) (string, error) {
	u.calls++
	return `{"translations":["Xin chào thế giới"]}`, nil
}

type failingMT struct{}

func (failingMT) Translate(ctx context.Context, text, source, target string) (string, error) {
	return "", errors.New("mt unavailable")
}

func testPreset(t *testing.T) (fonts.Preset, string) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Go-Regular.ttf"), goregular.TTF, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Go-Bold.ttf"), gobold.TTF, 0644))
	return fonts.Preset{
		Name:    "Go",
		Regular: fonts.Face{Name: "Go-Regular", File: "fonts/Go-Regular.ttf"},
		Bold:    fonts.Face{Name: "Go-Bold", File: "fonts/Go-Bold.ttf"},
	}, dir
}

func helloDoc() *layout.Document {
	return &layout.Document{Pages: []layout.Page{{
		Width: 640, Height: 800,
		Boxes: []layout.Box{
			{Class: layout.ClassText, X0: 50, Y0: 100, X1: 590, Y1: 130,
				TextLines: []layout.TextLine{{Spans: []layout.Span{
					{Text: "Hello", Color: 0x202020}, {Text: "world", Color: 0x202020},
				}}}},
			{Class: layout.ClassPicture, X0: 100, Y0: 200, X1: 300, Y1: 400},
			{Class: layout.ClassText, X0: 50, Y0: 500, X1: 590, Y1: 520,
				TextLines: []layout.TextLine{{Spans: []layout.Span{{Text: " \u0001 "}}}}},
		},
	}}}
}

func newTestPipeline(t *testing.T, det detector.Detector, canvas pdf.Canvas, llm translator.StructuredProvider, mt translator.PhraseTranslator) (*Pipeline, fonts.Preset) {
	preset, dir := testPreset(t)
	log := logger.Nop()
	return &Pipeline{
		Detector:   det,
		Compositor: pdf.NewCompositor(blankRasterizer{}, 2, log),
		NewCanvas:  func() pdf.Canvas { return canvas },
		Fonts:      fonts.NewRegistry(dir),
		Translator: translator.NewOrchestrator(translator.OrchestratorConfig{Primary: llm, Fallback: mt, Log: log}),
		Reinserter: pdf.NewReinserter(log),
		Padding:    layout.DefaultPadding,
		Fitter:     fitter.DefaultParams,
		Log:        log,
	}, preset
}

func TestProcessOnePageScenario(t *testing.T) {
	canvas := &spyCanvas{}
	llm := &upperLLM{}
	p, preset := newTestPipeline(t, &fixedDetector{doc: helloDoc()}, canvas, llm, failingMT{})

	var phases []Phase
	out, report, err := p.Process(context.Background(), Request{
		PDF: []byte("%PDF-src"), Source: "en", Target: "vi", Preset: preset,
		Progress: func(pr Progress) { phases = append(phases, pr.Phase) },
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-spy"), out)

	require.Len(t, canvas.draws, 1)
	assert.Equal(t, drawn{1, layout.Rect{X0: 100, Y0: 200, X1: 300, Y1: 400}}, canvas.draws[0])

	require.Len(t, canvas.inserts, 1)
	ins := canvas.inserts[0]
	assert.Equal(t, 1, ins.page)
	assert.Equal(t, "Xin chào thế giới", ins.text)
	assert.Equal(t, layout.Rect{X0: 50, Y0: 97.5, X1: 590, Y1: 132.5}, ins.rect)
	assert.LessOrEqual(t, ins.size, 28.0)
	assert.GreaterOrEqual(t, ins.size, 4.0)
	assert.Equal(t, "Go-Regular", ins.font)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, &Report{Pages: 1, Figures: 1, Units: 1, Inserted: 1, Structured: 1, Elapsed: report.Elapsed}, report)
	assert.Equal(t, []Phase{PhaseDetect, PhaseComposite, PhaseTranslate, PhaseTranslate, PhaseRender, PhaseRender}, phases)
}

func TestProcessDoesNotMutateDetectorResult(t *testing.T) {
	doc := helloDoc()
	p, preset := newTestPipeline(t, &fixedDetector{doc: doc}, &spyCanvas{}, &upperLLM{}, failingMT{})
	_, _, err := p.Process(context.Background(), Request{PDF: []byte("x"), Source: "en", Target: "vi", Preset: preset})
	require.NoError(t, err)
	assert.Equal(t, helloDoc(), doc)
}

func TestProcessHeadingsUseBold(t *testing.T) {
	doc := &layout.Document{Pages: []layout.Page{{Width: 640, Height: 800, Boxes: []layout.Box{
		{Class: layout.ClassTitle, X0: 50, Y0: 50, X1: 590, Y1: 90,
			TextLines: []layout.TextLine{{Spans: []layout.Span{{Text: "Title"}}}}},
	}}}}
	canvas := &spyCanvas{}
	p, preset := newTestPipeline(t, &fixedDetector{doc: doc}, canvas, &upperLLM{}, failingMT{})
	_, _, err := p.Process(context.Background(), Request{PDF: []byte("x"), Source: "en", Target: "vi", Preset: preset})
	require.NoError(t, err)
	require.Len(t, canvas.inserts, 1)
	assert.Equal(t, "Go-Bold", canvas.inserts[0].font)
}

func TestProcessWithoutTextReturnsFigureDocument(t *testing.T) {
	doc := &layout.Document{Pages: []layout.Page{{Width: 640, Height: 800, Boxes: []layout.Box{
		{Class: layout.ClassTable, X0: 10, Y0: 10, X1: 200, Y1: 200},
	}}}}
	canvas := &spyCanvas{}
	llm := &upperLLM{}
	p, preset := newTestPipeline(t, &fixedDetector{doc: doc}, canvas, llm, failingMT{})
	_, report, err := p.Process(context.Background(), Request{PDF: []byte("x"), Source: "en", Target: "vi", Preset: preset})
	require.NoError(t, err)
	assert.Zero(t, llm.calls)
	assert.Len(t, canvas.draws, 1)
	assert.Zero(t, report.Units)
}

func appCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestProcessErrors(t *testing.T) {
	ctx := context.Background()

	p, preset := newTestPipeline(t, &fixedDetector{err: errors.New("bad json")}, &spyCanvas{}, &upperLLM{}, failingMT{})
	_, _, err := p.Process(ctx, Request{PDF: []byte("x"), Source: "en", Target: "vi", Preset: preset})
	assert.Equal(t, types.ErrDetect, appCode(t, err))

	_, _, err = p.Process(ctx, Request{PDF: nil, Source: "en", Target: "vi", Preset: preset})
	assert.Equal(t, types.ErrInvalidInput, appCode(t, err))

	_, _, err = p.Process(ctx, Request{PDF: []byte("x"), Source: "en", Target: "xx", Preset: preset})
	assert.Equal(t, types.ErrInvalidInput, appCode(t, err))
	assert.Equal(t, "Unsupported language: en to xx", err.Error())

	missing := preset
	missing.Name = "Missing"
	missing.Regular.File = "nope.ttf"
	_, _, err = p.Process(ctx, Request{PDF: []byte("x"), Source: "en", Target: "vi", Preset: missing})
	assert.Equal(t, types.ErrRender, appCode(t, err))

	// 主策略输出无效且回退失败
	bad := &fixedLLM{out: "not json"}
	p, preset = newTestPipeline(t, &fixedDetector{doc: helloDoc()}, &spyCanvas{}, bad, failingMT{})
	_, _, err = p.Process(ctx, Request{PDF: []byte("x"), Source: "en", Target: "vi", Preset: preset})
	assert.Equal(t, types.ErrTranslate, appCode(t, err))
	assert.Contains(t, err.Error(), "translation failed")
	assert.NotContains(t, err.Error(), "mt unavailable")
}

type fixedLLM struct{ out string }

func (f *fixedLLM) Name() string { return "fixed" }
func (f *fixedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.out, nil
}

type slowDetector struct{}

func (slowDetector) Detect(ctx context.Context, src []byte) (*layout.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessTimeout(t *testing.T) {
	p, preset := newTestPipeline(t, slowDetector{}, &spyCanvas{}, &upperLLM{}, failingMT{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := p.Process(ctx, Request{PDF: []byte("x"), Source: "en", Target: "vi", Preset: preset})
	assert.Equal(t, types.ErrTimeout, appCode(t, err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessWritesRealPDF(t *testing.T) {
	p, preset := newTestPipeline(t, &fixedDetector{doc: helloDoc()}, nil, &upperLLM{}, failingMT{})
	p.NewCanvas = func() pdf.Canvas { return pdf.NewFpdfCanvas() }

	out, report, err := p.Process(context.Background(), Request{PDF: []byte("x"), Source: "en", Target: "vi", Preset: preset})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
	assert.Equal(t, 1, report.Inserted)

	insp := pdf.NewPdfcpuInspector()
	require.NoError(t, insp.Validate(out))
	sizes, err := insp.PageSizes(out)
	require.NoError(t, err)
	require.Len(t, sizes, 1)
	assert.InDelta(t, 640, sizes[0].Width, 0.01)
	assert.InDelta(t, 800, sizes[0].Height, 0.01)
}

func TestCollectUnitsSkipsInvalidAndFigures(t *testing.T) {
	doc := &layout.Document{Pages: []layout.Page{
		{Width: 100, Height: 100, Boxes: []layout.Box{
			{Class: layout.ClassText, X0: 10, Y0: 10, X1: 5, Y1: 20, TextLines: []layout.TextLine{{Spans: []layout.Span{{Text: "inverted"}}}}},
			{Class: layout.ClassFormula, X0: 0, Y0: 0, X1: 10, Y1: 10, TextLines: []layout.TextLine{{Spans: []layout.Span{{Text: "E=mc2"}}}}},
			{Class: layout.ClassCaption, X0: 0, Y0: 50, X1: 90, Y1: 60, TextLines: []layout.TextLine{{Spans: []layout.Span{{Text: "Figure 1"}}}}},
		}},
		{Width: 100, Height: 100, Boxes: []layout.Box{
			{Class: layout.ClassListItem, X0: 0, Y0: 0, X1: 90, Y1: 10, TextLines: []layout.TextLine{{Spans: []layout.Span{{Text: "item"}}}}},
		}},
	}}
	units := CollectUnits(doc, logger.Nop())
	require.Len(t, units, 2)
	assert.Equal(t, 1, units[0].Page)
	assert.Equal(t, "Figure 1", units[0].Box.Text)
	assert.Equal(t, 2, units[1].Page)
	assert.Equal(t, layout.ClassListItem, units[1].Class)
}

func TestNewFromDefaultConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Detector.Kind = detector.KindRows
	cfg.Cache.Store = "memory"
	p, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &detector.Cached{}, p.Detector)
	assert.Nil(t, p.Translator.Primary)
	assert.Equal(t, 8, p.Translator.BatchSize)
	assert.Equal(t, 5*time.Second, p.Translator.Delay)
	assert.Equal(t, 0.996, p.Reinserter.OverflowShrink)
	assert.Equal(t, 28.0, p.Fitter.MaxSize)

	cfg.Cache.Store = "none"
	p, err = New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &detector.Rows{}, p.Detector)
}

package pdf

import (
	"fmt"

	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
)

// Reinserter 把译文写回文本框：放不下时按比例缩小字号重试，超过次数则留空
type Reinserter struct {
	OverflowShrink float64
	ErrorShrink    float64
	MaxAttempts    int
	Log            logger.Logger
}

// NewReinserter 默认参数：溢出 ×0.996，异常 ×0.99，最多 100 次
func NewReinserter(log logger.Logger) *Reinserter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Reinserter{OverflowShrink: 0.996, ErrorShrink: 0.99, MaxAttempts: 100, Log: log}
}

// Placement 一个待写入的文本框
type Placement struct {
	Page  int
	Rect  layout.Rect
	Text  string
	Style TextStyle
}

// Outcome 写入结果
type Outcome struct {
	Inserted bool
	Attempts int
	Size     float64
	LastErr  error
}

// Insert 单个文本框失败不影响其他框
func (r *Reinserter) Insert(canvas Canvas, p Placement) Outcome {
	style := p.Style
	out := Outcome{Size: style.Size}

	for out.Attempts < r.MaxAttempts {
		remaining, err := r.try(canvas, p.Page, p.Rect, p.Text, style)
		if err == nil && remaining >= 0 {
			out.Inserted = true
			out.Size = style.Size
			out.Attempts++
			return out
		}
		out.Attempts++
		if err != nil {
			out.LastErr = err
			r.Log.Debug("textbox insert error, shrinking",
				logger.Int("page", p.Page),
				logger.Float64("size", style.Size),
				logger.Err(err))
			style.Size *= r.ErrorShrink
		} else {
			style.Size *= r.OverflowShrink
		}
	}

	out.Size = style.Size
	r.Log.Warn("textbox left blank after max attempts",
		logger.Int("page", p.Page),
		logger.String("rect", p.Rect.String()),
		logger.Int("attempts", out.Attempts),
		logger.Float64("finalSize", style.Size))
	return out
}

// try 引擎 panic 视同异常
func (r *Reinserter) try(canvas Canvas, page int, rect layout.Rect, text string, style TextStyle) (remaining float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("engine panic: %v", rec)
		}
	}()
	return canvas.InsertTextbox(page, rect, text, style)
}

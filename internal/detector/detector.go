// Package detector 版面检测：输入 PDF 字节，输出带类别的版面框
package detector

import (
	"context"
	"fmt"
	"time"

	"pdf-layout-translator/internal/cache"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/pdf"
	"pdf-layout-translator/internal/python"
	"pdf-layout-translator/internal/types"
)

const (
	KindPyMuPDF = "pymupdf4llm"
	KindRows    = "rows"
)

// Detector 版面检测器
type Detector interface {
	Detect(ctx context.Context, src []byte) (*layout.Document, error)
}

// Cached 在检测前查询版面缓存
type Cached struct {
	Inner Detector
	Cache *cache.LayoutCache
}

func (c *Cached) Detect(ctx context.Context, src []byte) (*layout.Document, error) {
	doc, _, err := c.Cache.GetOrDetect(ctx, src, c.Inner.Detect)
	return doc, err
}

// New 按配置创建检测器
func New(cfg types.DetectorConfig, sizer pdf.PageSizer, log logger.Logger) (Detector, error) {
	switch cfg.Kind {
	case "", KindPyMuPDF:
		return &PyMuPDF{
			Env:      python.New(cfg.PythonPath),
			Timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
			ImageDPI: 300,
			Log:      log,
		}, nil
	case KindRows:
		return NewRows(sizer), nil
	default:
		return nil, fmt.Errorf("unknown detector kind %q", cfg.Kind)
	}
}

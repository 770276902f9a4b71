package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PdfcpuInspector 使用 pdfcpu（纯 Go）读取页尺寸并校验文档
type PdfcpuInspector struct {
	conf *model.Configuration
}

// NewPdfcpuInspector 创建 inspector，校验模式为宽松
func NewPdfcpuInspector() *PdfcpuInspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PdfcpuInspector{conf: conf}
}

// PageSizes 返回每页的尺寸（pt）
func (p *PdfcpuInspector) PageSizes(src []byte) ([]PageSize, error) {
	ctx, err := api.ReadContext(bytes.NewReader(src), p.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	out := make([]PageSize, len(dims))
	for i, d := range dims {
		out[i] = PageSize{Width: d.Width, Height: d.Height}
	}
	return out, nil
}

// PageCount 页数
func (p *PdfcpuInspector) PageCount(src []byte) (int, error) {
	ctx, err := api.ReadContext(bytes.NewReader(src), p.conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return ctx.PageCount, nil
}

// Validate 检查是否为结构有效的 PDF，用于输入校验与输出自检
func (p *PdfcpuInspector) Validate(src []byte) error {
	if err := api.Validate(bytes.NewReader(src), p.conf); err != nil {
		return fmt.Errorf("invalid PDF: %w", err)
	}
	return nil
}

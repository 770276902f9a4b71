// Package pdf 是流水线的文档引擎：源页栅格化、页尺寸读取、输出画布，
// 以及在其上完成的图形合成与译文回填。
package pdf

import (
	"context"
	"errors"
	"image"

	"github.com/lucasb-eyer/go-colorful"

	"pdf-layout-translator/internal/fonts"
	"pdf-layout-translator/internal/layout"
)

// PageVisitor 按页序接收栅格图，index 从 0 开始
type PageVisitor func(index int, img image.Image) error

// Rasterizer 将源文档逐页栅格化
type Rasterizer interface {
	Rasterize(ctx context.Context, src []byte, zoom float64, visit PageVisitor) error
}

// PageSize 页尺寸（pt）
type PageSize struct {
	Width  float64
	Height float64
}

// PageSizer 读取源文档的页数与页尺寸
type PageSizer interface {
	PageSizes(src []byte) ([]PageSize, error)
}

// TextStyle 一次文本插入使用的样式
type TextStyle struct {
	Font  *fonts.Font
	Size  float64
	Color colorful.Color
}

// Canvas 输出文档。页号从 1 开始
type Canvas interface {
	AddPage(width, height float64) error
	PageCount() int
	DrawImage(page int, img image.Image, rect layout.Rect) error
	RegisterFont(f *fonts.Font) error
	// InsertTextbox 在 rect 内两端对齐地写入文本，返回剩余高度；
	// 负数表示放不下，此时不写入任何内容
	InsertTextbox(page int, rect layout.Rect, text string, style TextStyle) (float64, error)
	Bytes() ([]byte, error)
}

var (
	// ErrPageOutOfRange 页号超出画布或源文档范围
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrFontNotRegistered 插入文本前未注册字体
	ErrFontNotRegistered = errors.New("font not registered")
	// ErrCanvasClosed Bytes 之后不能再修改画布
	ErrCanvasClosed = errors.New("canvas already serialized")
)

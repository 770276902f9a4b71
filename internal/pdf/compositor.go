package pdf

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
)

// DefaultZoom 栅格化倍率，2.0 即 144dpi
const DefaultZoom = 2.0

// Compositor 生成只含图形区域（图片、公式、表格）的底稿
type Compositor struct {
	Raster Rasterizer
	Zoom   float64
	Log    logger.Logger
}

// CompositeStats 合成统计
type CompositeStats struct {
	Pages   int
	Figures int
	Skipped int
}

// NewCompositor 创建 Compositor
func NewCompositor(r Rasterizer, zoom float64, log logger.Logger) *Compositor {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Compositor{Raster: r, Zoom: zoom, Log: log}
}

// Composite 为 doc 的每一页在 canvas 上新建同尺寸空白页，并把图形区域的栅格裁剪贴回原位置
func (c *Compositor) Composite(ctx context.Context, src []byte, doc *layout.Document, canvas Canvas) (CompositeStats, error) {
	var stats CompositeStats
	firstPage := canvas.PageCount() + 1

	for _, p := range doc.Pages {
		if err := canvas.AddPage(p.Width, p.Height); err != nil {
			return stats, fmt.Errorf("add page: %w", err)
		}
	}
	stats.Pages = len(doc.Pages)

	seen := 0
	err := c.Raster.Rasterize(ctx, src, c.Zoom, func(index int, img image.Image) error {
		if index >= len(doc.Pages) {
			// 源文档页数多于版面结果时只处理有版面的页
			return nil
		}
		seen++
		page := doc.Pages[index]
		for bi, box := range page.Boxes {
			if !box.Class.IsFigure() {
				continue
			}
			crop, ok := CropBox(img, page, box.Rect())
			if !ok {
				stats.Skipped++
				c.Log.Warn("empty figure crop skipped",
					logger.Int("page", index+1),
					logger.Int("box", bi),
					logger.String("class", string(box.Class)),
					logger.String("rect", box.Rect().String()))
				continue
			}
			if err := canvas.DrawImage(firstPage+index, crop, box.Rect()); err != nil {
				return fmt.Errorf("page %d box %d: %w", index+1, bi, err)
			}
			stats.Figures++
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	if seen < len(doc.Pages) {
		return stats, fmt.Errorf("%w: layout has %d pages, source rendered %d", ErrPageOutOfRange, len(doc.Pages), seen)
	}

	c.Log.Info("figure base composed",
		logger.Int("pages", stats.Pages),
		logger.Int("figures", stats.Figures),
		logger.Int("skipped", stats.Skipped))
	return stats, nil
}

// CropBox 将 PDF 坐标的 rect 映射到栅格像素后裁剪，越界部分截断；结果为空时返回 false
func CropBox(img image.Image, page layout.Page, r layout.Rect) (image.Image, bool) {
	if !r.Valid() || page.Width <= 0 || page.Height <= 0 {
		return nil, false
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	px := image.Rect(
		b.Min.X+int(w*(r.X0/page.Width)),
		b.Min.Y+int(h*(r.Y0/page.Height)),
		b.Min.X+int(w*(r.X1/page.Width)),
		b.Min.Y+int(h*(r.Y1/page.Height)),
	).Intersect(b)
	if px.Empty() {
		return nil, false
	}

	dst := image.NewRGBA(image.Rect(0, 0, px.Dx(), px.Dy()))
	draw.Copy(dst, image.Point{}, img, px, draw.Src, nil)
	return dst, true
}

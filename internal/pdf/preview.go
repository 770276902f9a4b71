package pdf

import (
	"context"
	"image"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"

	"pdf-layout-translator/internal/layout"
)

var classOrder = []layout.BoxClass{
	layout.ClassTitle, layout.ClassSectionHeader, layout.ClassText, layout.ClassListItem,
	layout.ClassCaption, layout.ClassPageHeader, layout.ClassPageFooter,
	layout.ClassPicture, layout.ClassFormula, layout.ClassTable,
}

// ClassColor 每个类别一个固定色相
func ClassColor(c layout.BoxClass) colorful.Color {
	for i, k := range classOrder {
		if k == c {
			return colorful.Hsv(float64(i)*360/float64(len(classOrder)), 0.75, 0.85)
		}
	}
	return colorful.Color{R: 0.5, G: 0.5, B: 0.5}
}

// DrawLayout 在页栅格上画出各版面框与类别标签，face 为 nil 时不写标签
func DrawLayout(img image.Image, page layout.Page, face font.Face) image.Image {
	dc := gg.NewContextForImage(img)
	b := img.Bounds()
	sx := float64(b.Dx()) / page.Width
	sy := float64(b.Dy()) / page.Height
	if face != nil {
		dc.SetFontFace(face)
	}

	for _, box := range page.Boxes {
		r := box.Rect()
		col := ClassColor(box.Class)
		x, y := r.X0*sx, r.Y0*sy
		w, h := r.Width()*sx, r.Height()*sy

		dc.SetRGBA(col.R, col.G, col.B, 0.15)
		dc.DrawRectangle(x, y, w, h)
		dc.Fill()

		dc.SetColor(col)
		dc.SetLineWidth(2)
		dc.DrawRectangle(x, y, w, h)
		dc.Stroke()

		if face != nil {
			dc.DrawStringAnchored(string(box.Class), x+2, y-2, 0, 0)
		}
	}
	return dc.Image()
}

// PreviewLayout 栅格化源文档并为每页叠加版面框
func PreviewLayout(ctx context.Context, r Rasterizer, src []byte, doc *layout.Document, zoom float64, face font.Face, visit PageVisitor) error {
	return r.Rasterize(ctx, src, zoom, func(index int, img image.Image) error {
		if index >= len(doc.Pages) {
			return nil
		}
		return visit(index, DrawLayout(img, doc.Pages[index], face))
	})
}

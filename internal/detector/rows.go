package detector

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	lpdf "github.com/ledongthuc/pdf"

	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/pdf"
)

// Rows 无模型时的规则检测：按文本行提取，相邻且字号相同的行合并为段落框。
// 不识别图片、公式和表格，这些区域在输出中为空白。
type Rows struct {
	Sizer pdf.PageSizer
}

func NewRows(sizer pdf.PageSizer) *Rows {
	if sizer == nil {
		sizer = pdf.NewPdfcpuInspector()
	}
	return &Rows{Sizer: sizer}
}

// textRow 一行文本，坐标已换算为左上原点
type textRow struct {
	X0, X1 float64
	Y0, Y1 float64
	Size   float64
	Text   string
}

func (d *Rows) Detect(ctx context.Context, src []byte) (*layout.Document, error) {
	sizes, err := d.Sizer.PageSizes(src)
	if err != nil {
		return nil, fmt.Errorf("read page sizes: %w", err)
	}
	r, err := lpdf.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	doc := &layout.Document{Pages: make([]layout.Page, len(sizes))}
	var all [][]textRow
	for i, sz := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.Pages[i] = layout.Page{Width: sz.Width, Height: sz.Height, Boxes: []layout.Box{}}
		var rows []textRow
		if i+1 <= r.NumPage() {
			rows = extractRows(r.Page(i+1), sz.Height)
		}
		all = append(all, rows)
	}

	median := medianSize(all)
	for i, rows := range all {
		doc.Pages[i].Boxes = groupRows(rows, median, i == 0)
	}
	return doc, nil
}

func extractRows(page lpdf.Page, pageHeight float64) []textRow {
	if page.V.IsNull() || page.V.Key("Contents").Kind() == lpdf.Null {
		return nil
	}
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil
	}

	var out []textRow
	for _, row := range rows {
		var sb strings.Builder
		tr := textRow{X0: math.Inf(1), X1: math.Inf(-1)}
		var baseline, sizeSum float64
		n := 0
		for _, t := range row.Content {
			if t.S == "" {
				continue
			}
			sb.WriteString(t.S)
			tr.X0 = math.Min(tr.X0, t.X)
			tr.X1 = math.Max(tr.X1, t.X+t.W)
			baseline = t.Y
			sizeSum += t.FontSize
			n++
		}
		text := strings.TrimSpace(sb.String())
		if n == 0 || text == "" {
			continue
		}
		tr.Size = sizeSum / float64(n)
		if tr.Size <= 0 {
			tr.Size = 10
		}
		if tr.X1 <= tr.X0 {
			tr.X1 = tr.X0 + float64(len([]rune(text)))*tr.Size*0.5
		}
		tr.Y0 = pageHeight - baseline - 0.8*tr.Size
		tr.Y1 = pageHeight - baseline + 0.2*tr.Size
		tr.Text = text
		out = append(out, tr)
	}
	return out
}

func medianSize(pages [][]textRow) float64 {
	var sizes []float64
	for _, rows := range pages {
		for _, r := range rows {
			sizes = append(sizes, r.Size)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

func classify(r textRow, median float64, firstPage bool) layout.BoxClass {
	if median <= 0 {
		return layout.ClassText
	}
	switch {
	case firstPage && r.Size >= 1.5*median:
		return layout.ClassTitle
	case r.Size >= 1.2*median:
		return layout.ClassSectionHeader
	}
	return layout.ClassText
}

// groupRows 自上而下合并：同类别、行距不超过 0.6 倍字号、左边界相差不超过 2 倍字号
func groupRows(rows []textRow, median float64, firstPage bool) []layout.Box {
	sorted := append([]textRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y0 < sorted[j].Y0 })

	boxes := []layout.Box{}
	var last *layout.Box
	var lastSize float64
	for _, r := range sorted {
		class := classify(r, median, firstPage)
		line := layout.TextLine{Spans: []layout.Span{{Text: r.Text, Size: r.Size}}}
		if last != nil && last.Class == class &&
			r.Y0-last.Y1 <= 0.6*lastSize &&
			math.Abs(r.X0-last.X0) <= 2*lastSize {
			last.X0 = math.Min(last.X0, r.X0)
			last.X1 = math.Max(last.X1, r.X1)
			last.Y1 = math.Max(last.Y1, r.Y1)
			last.TextLines = append(last.TextLines, line)
			continue
		}
		boxes = append(boxes, layout.Box{
			Class: class, X0: r.X0, Y0: r.Y0, X1: r.X1, Y1: r.Y1,
			TextLines: []layout.TextLine{line},
		})
		last = &boxes[len(boxes)-1]
		lastSize = r.Size
	}
	return boxes
}

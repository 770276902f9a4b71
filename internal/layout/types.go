// Package layout 定义版面检测结果的数据模型，以及文本框的扩边和文本整理。
package layout

import (
	"encoding/json"
	"fmt"
)

// BoxClass 版面元素类别
type BoxClass string

const (
	ClassTitle         BoxClass = "title"
	ClassSectionHeader BoxClass = "section-header"
	ClassText          BoxClass = "text"
	ClassListItem      BoxClass = "list-item"
	ClassCaption       BoxClass = "caption"
	ClassPageHeader    BoxClass = "page-header"
	ClassPageFooter    BoxClass = "page-footer"
	ClassPicture       BoxClass = "picture"
	ClassFormula       BoxClass = "formula"
	ClassTable         BoxClass = "table"
)

var knownClasses = map[BoxClass]bool{
	ClassTitle: true, ClassSectionHeader: true, ClassText: true, ClassListItem: true,
	ClassCaption: true, ClassPageHeader: true, ClassPageFooter: true,
	ClassPicture: true, ClassFormula: true, ClassTable: true,
}

// Valid 是否为已知类别
func (c BoxClass) Valid() bool { return knownClasses[c] }

// IsFigure picture/formula/table 以栅格图保留，不翻译
func (c BoxClass) IsFigure() bool {
	return c == ClassPicture || c == ClassFormula || c == ClassTable
}

// IsTranslatable 非图形类别都需要翻译
func (c BoxClass) IsTranslatable() bool { return c.Valid() && !c.IsFigure() }

// IsHeading 标题类使用粗体
func (c BoxClass) IsHeading() bool {
	return c == ClassTitle || c == ClassSectionHeader
}

// Rect PDF 坐标（左上为原点，单位 pt）
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Valid x0<x1 且 y0<y1
func (r Rect) Valid() bool { return r.X0 < r.X1 && r.Y0 < r.Y1 }

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f)-(%.2f,%.2f)", r.X0, r.Y0, r.X1, r.Y1)
}

// Span 一段同样式文本，Color 为打包的 0xRRGGBB
type Span struct {
	Text  string  `json:"text"`
	Color int     `json:"color"`
	Font  string  `json:"font,omitempty"`
	Size  float64 `json:"size,omitempty"`
}

type TextLine struct {
	Spans []Span `json:"spans"`
}

// Box 检测到的一个版面区域
type Box struct {
	Class     BoxClass   `json:"boxclass"`
	X0        float64    `json:"x0"`
	Y0        float64    `json:"y0"`
	X1        float64    `json:"x1"`
	Y1        float64    `json:"y1"`
	TextLines []TextLine `json:"textlines,omitempty"`
}

func (b Box) Rect() Rect { return Rect{X0: b.X0, Y0: b.Y0, X1: b.X1, Y1: b.Y1} }

type Page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Boxes  []Box   `json:"boxes"`
}

// Document 整个文档的版面结果，页序与源文档一致
type Document struct {
	Pages []Page `json:"pages"`
}

// Decode 解析检测器输出的 JSON，并校验类别与页尺寸
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode layout json: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode 序列化为 JSON（缓存使用）
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Validate 检查未知类别和非正的页尺寸
func (d *Document) Validate() error {
	for pi, p := range d.Pages {
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("page %d: invalid size %vx%v", pi+1, p.Width, p.Height)
		}
		for bi, b := range p.Boxes {
			if !b.Class.Valid() {
				return fmt.Errorf("page %d box %d: unknown box class %q", pi+1, bi, b.Class)
			}
		}
	}
	return nil
}

// Clone 深拷贝
func (d *Document) Clone() *Document {
	out := &Document{Pages: make([]Page, len(d.Pages))}
	for i, p := range d.Pages {
		np := Page{Width: p.Width, Height: p.Height, Boxes: make([]Box, len(p.Boxes))}
		for j, b := range p.Boxes {
			nb := b
			if b.TextLines != nil {
				nb.TextLines = make([]TextLine, len(b.TextLines))
				for k, tl := range b.TextLines {
					nb.TextLines[k] = TextLine{Spans: append([]Span(nil), tl.Spans...)}
				}
			}
			np.Boxes[j] = nb
		}
		out.Pages[i] = np
	}
	return out
}

// Stats 各类别的数量
func (d *Document) Stats() map[BoxClass]int {
	m := make(map[BoxClass]int)
	for _, p := range d.Pages {
		for _, b := range p.Boxes {
			m[b.Class]++
		}
	}
	return m
}

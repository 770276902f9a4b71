// Package fitter 用二分搜索为文本框估算合适的字号
package fitter

import (
	"math"
	"strings"

	"pdf-layout-translator/internal/layout"
)

// Measurer 字体度量，*fonts.Font 实现了该接口
type Measurer interface {
	TextLength(s string, size float64) float64
	Ascender() float64
	Descender() float64
}

// Params 搜索参数
type Params struct {
	MinSize   float64
	MaxSize   float64
	Epochs    int
	Tolerance float64
	// LineSpacing 行高 = (ascender - descender) * size * LineSpacing
	LineSpacing float64
	// HeightSlack 可用高度放宽系数
	HeightSlack float64
}

// DefaultParams 流水线使用的参数
var DefaultParams = Params{
	MinSize:     4,
	MaxSize:     28,
	Epochs:      30,
	Tolerance:   0.005,
	LineSpacing: 1.2,
	HeightSlack: 1.05,
}

// Result 估算结果
type Result struct {
	Size   float64
	Lines  int
	Height float64
}

// Wrap 按空白切词后贪心排行，单个超宽的词独占一行
func Wrap(text string, width float64, m Measurer, size float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 || width <= 0 {
		return nil
	}
	space := m.TextLength(" ", size)

	var lines []string
	var cur []string
	curLen := 0.0
	for _, w := range words {
		wl := m.TextLength(w, size)
		gap := 0.0
		if len(cur) > 0 {
			gap = space
		}
		if curLen+wl+gap <= width {
			cur = append(cur, w)
			curLen += wl + gap
			continue
		}
		if len(cur) > 0 {
			lines = append(lines, strings.Join(cur, " "))
		}
		cur = []string{w}
		curLen = wl
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, " "))
	}
	return lines
}

// LineHeight 单行高度
func (p Params) LineHeight(m Measurer, size float64) float64 {
	return (m.Ascender() - m.Descender()) * size * p.LineSpacing
}

// SimulateHeight 估算文本在给定宽度与字号下排版后的总高度
func (p Params) SimulateHeight(text string, width float64, m Measurer, size float64) (float64, int) {
	if strings.TrimSpace(text) == "" || width <= 0 {
		return 0, 0
	}
	n := len(Wrap(text, width, m, size))
	return float64(n) * p.LineHeight(m, size), n
}

// ceilingFactor 按类别调整搜索上界
func ceilingFactor(c layout.BoxClass) float64 {
	switch c {
	case layout.ClassTitle, layout.ClassSectionHeader:
		return 1.2
	case layout.ClassText, layout.ClassListItem:
		return 0.8
	}
	return 1.0
}

// Fit 在 [MinSize, MaxSize*factor] 上二分，返回能放进 rect 的最大字号，结果限制在 [MinSize, MaxSize]
func (p Params) Fit(text string, rect layout.Rect, class layout.BoxClass, m Measurer) Result {
	width := math.Abs(rect.X1 - rect.X0)
	height := math.Abs(rect.Y1-rect.Y0) * p.HeightSlack
	if strings.TrimSpace(text) == "" || width <= 0 || height <= 0 {
		return Result{Size: p.MinSize}
	}

	low := p.MinSize
	high := p.MaxSize * ceilingFactor(class)
	fit := p.MinSize

	for i := 0; i < p.Epochs; i++ {
		mid := (low + high) / 2
		if h, _ := p.SimulateHeight(text, width, m, mid); h <= height {
			fit = mid
			low = mid + p.Tolerance
		} else {
			high = mid - p.Tolerance
		}
		if math.Abs(high-low) < p.Tolerance {
			break
		}
	}

	size := math.Max(p.MinSize, math.Min(p.MaxSize, fit))
	h, n := p.SimulateHeight(text, width, m, size)
	return Result{Size: size, Lines: n, Height: h}
}

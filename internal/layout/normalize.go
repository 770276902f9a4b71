package layout

import (
	"strings"
	"unicode"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/text/unicode/norm"
)

// Padding 按类别的纵向扩边量
type Padding struct {
	Small float64
	Large float64
}

// DefaultPadding 正文 2.5pt，标题/页眉页脚/图注 3pt
var DefaultPadding = Padding{Small: 2.5, Large: 3}

func (p Padding) delta(c BoxClass) float64 {
	switch c {
	case ClassTitle, ClassSectionHeader, ClassCaption, ClassPageHeader, ClassPageFooter:
		return p.Large
	case ClassText, ClassListItem:
		return p.Small
	}
	return 0
}

// Pad 返回纵向扩边后的新文档，输入不被修改
func Pad(doc *Document, p Padding) *Document {
	out := doc.Clone()
	for i := range out.Pages {
		boxes := out.Pages[i].Boxes
		for j := range boxes {
			d := p.delta(boxes[j].Class)
			boxes[j].Y0 -= d
			boxes[j].Y1 += d
		}
	}
	return out
}

// ConsolidatedBox 一个文本框整理后的结果
type ConsolidatedBox struct {
	Rect  Rect
	Text  string
	Color colorful.Color
}

// HasText 去掉空白后是否还有内容
func (c ConsolidatedBox) HasText() bool { return strings.TrimSpace(c.Text) != "" }

// 字体问题导致的游离附加符号
var strayMarks = strings.NewReplacer(
	"\u02C6", "",
	"^", "",
	"\u0302", "",
	"\u0309", "",
	"\u0306", "",
	"\u0301", "",
	"\u0300", "",
	"\u0303", "",
	"\u0323", "",
)

// CleanText 清理单个 span 的文本
func CleanText(raw string) string {
	text := strings.Map(func(r rune) rune {
		if isOther(r) && r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, raw)
	text = strayMarks.Replace(text)
	text = collapseSpaces(text)
	text = norm.NFC.String(text)
	text = dropSymbolRuns(text)
	return strings.TrimSpace(text)
}

// isOther Unicode 大类 C（含未分配码位）
func isOther(r rune) bool {
	return !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z)
}

// collapseSpaces 连续两个及以上空白替换为单个空格
func collapseSpaces(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	rs := []rune(s)
	for i := 0; i < len(rs); {
		if !unicode.IsSpace(rs[i]) {
			sb.WriteRune(rs[i])
			i++
			continue
		}
		j := i
		for j < len(rs) && unicode.IsSpace(rs[j]) {
			j++
		}
		if j-i >= 2 {
			sb.WriteByte(' ')
		} else {
			sb.WriteRune(rs[i])
		}
		i = j
	}
	return sb.String()
}

func isWordish(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		(r >= 0x00C0 && r <= 0x1FFF) || (r >= 0x2000 && r <= 0x206F)
}

// dropSymbolRuns 删除同一非文字符号连续出现 4 次及以上的片段（如 "....." 引导线）
func dropSymbolRuns(s string) string {
	rs := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(rs); {
		j := i + 1
		for j < len(rs) && rs[j] == rs[i] {
			j++
		}
		if isWordish(rs[i]) || j-i < 4 {
			for k := i; k < j; k++ {
				sb.WriteRune(rs[k])
			}
		}
		i = j
	}
	return sb.String()
}

// DecodeColor 将 0xRRGGBB 解码为各通道 [0,1] 的颜色
func DecodeColor(packed int) colorful.Color {
	return colorful.Color{
		R: float64((packed>>16)&255) / 255,
		G: float64((packed>>8)&255) / 255,
		B: float64(packed&255) / 255,
	}
}

// dominantColor 出现次数最多的颜色，相同次数取最先出现的；没有 span 时为 0
func dominantColor(colors []int) int {
	if len(colors) == 0 {
		return 0
	}
	counts := make(map[int]int, len(colors))
	best, bestN := colors[0], 0
	for _, c := range colors {
		counts[c]++
	}
	for _, c := range colors {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}

// Consolidate 合并框内所有行与 span 的文本，并取主色
func Consolidate(b Box) ConsolidatedBox {
	var lines []string
	var colors []int
	for _, tl := range b.TextLines {
		var parts []string
		for _, sp := range tl.Spans {
			colors = append(colors, sp.Color)
			if t := CleanText(sp.Text); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " "))
		}
	}
	return ConsolidatedBox{
		Rect:  b.Rect(),
		Text:  strings.TrimSpace(strings.Join(lines, " ")),
		Color: DecodeColor(dominantColor(colors)),
	}
}

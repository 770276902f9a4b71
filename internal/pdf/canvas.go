package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/unicode/norm"

	"pdf-layout-translator/internal/fitter"
	"pdf-layout-translator/internal/fonts"
	"pdf-layout-translator/internal/layout"
)

// FpdfCanvas 基于 gofpdf 的输出画布，坐标原点在左上角，单位 pt
type FpdfCanvas struct {
	pdf      *gofpdf.Fpdf
	fonts    map[string]*fonts.Font
	imageSeq int
	closed   bool
}

// NewFpdfCanvas 创建空白画布，页面由 AddPage 按源文档尺寸逐页添加
func NewFpdfCanvas() *FpdfCanvas {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: 595.28, Ht: 841.89},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	pdf.SetCompression(true)
	return &FpdfCanvas{pdf: pdf, fonts: make(map[string]*fonts.Font)}
}

func (c *FpdfCanvas) takeError() error {
	if err := c.pdf.Error(); err != nil {
		c.pdf.ClearError()
		return err
	}
	return nil
}

// AddPage 追加一页
func (c *FpdfCanvas) AddPage(width, height float64) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid page size %vx%v", width, height)
	}
	c.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: width, Ht: height})
	return c.takeError()
}

func (c *FpdfCanvas) PageCount() int { return c.pdf.PageCount() }

func (c *FpdfCanvas) selectPage(page int) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if page < 1 || page > c.pdf.PageCount() {
		return fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, c.pdf.PageCount())
	}
	c.pdf.SetPage(page)
	return nil
}

// DrawImage 以 PNG 嵌入图片并缩放到 rect
func (c *FpdfCanvas) DrawImage(page int, img image.Image, rect layout.Rect) error {
	if err := c.selectPage(page); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	c.imageSeq++
	name := fmt.Sprintf("crop-%d", c.imageSeq)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	c.pdf.RegisterImageOptionsReader(name, opts, &buf)
	c.pdf.ImageOptions(name, rect.X0, rect.Y0, rect.Width(), rect.Height(), false, opts, 0, "")
	return c.takeError()
}

// RegisterFont 注册 UTF-8 TrueType 字体，重复注册忽略
func (c *FpdfCanvas) RegisterFont(f *fonts.Font) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if _, ok := c.fonts[f.Name]; ok {
		return nil
	}
	c.pdf.AddUTF8FontFromBytes(f.Name, "", f.Data())
	if err := c.takeError(); err != nil {
		return fmt.Errorf("register font %s: %w", f.Name, err)
	}
	c.fonts[f.Name] = f
	return nil
}

// InsertTextbox 用字体自身的字宽排行并逐行绘制，检查的行数就是绘制的行数。
// 行高为 (ascender - descender) * size，除末行外两端对齐。
// 返回 rect 剩余高度；为负表示放不下（含单词宽于 rect），此时不绘制
func (c *FpdfCanvas) InsertTextbox(page int, rect layout.Rect, text string, style TextStyle) (float64, error) {
	if err := c.selectPage(page); err != nil {
		return 0, err
	}
	if style.Font == nil || c.fonts[style.Font.Name] == nil {
		return 0, ErrFontNotRegistered
	}
	if style.Size <= 0 {
		return 0, fmt.Errorf("invalid font size %v", style.Size)
	}

	f, size := style.Font, style.Size
	width := rect.Width()
	space := f.TextLength(" ", size)
	lines := wrapWords(drawableText(text), width, f, size)
	lineHeight := (f.Ascender() - f.Descender()) * size
	remaining := rect.Height() - float64(len(lines))*lineHeight
	for _, l := range lines {
		if over := width - l.width(space); over < remaining {
			remaining = over
		}
	}
	if remaining < 0 {
		return remaining, nil
	}

	c.pdf.SetFont(f.Name, "", size)
	if err := c.takeError(); err != nil {
		return 0, err
	}
	r, g, b := style.Color.Clamped().RGB255()
	c.pdf.SetTextColor(int(r), int(g), int(b))

	ascent := f.Ascender() * size
	for i, l := range lines {
		gap := space
		if i < len(lines)-1 && len(l.words) > 1 {
			gap = (width - l.used) / float64(len(l.words)-1)
		}
		x := rect.X0
		baseline := rect.Y0 + float64(i)*lineHeight + ascent
		for j, w := range l.words {
			c.pdf.Text(x, baseline, w)
			x += l.widths[j] + gap
		}
	}
	c.pdf.SetXY(rect.X0, rect.Y0+float64(len(lines))*lineHeight)
	if err := c.takeError(); err != nil {
		return 0, err
	}
	return remaining, nil
}

// textLine 一行中的词及各自宽度；词按字体字宽逐个定位，行宽不含字间调整
type textLine struct {
	words  []string
	widths []float64
	used   float64
}

func (l textLine) width(space float64) float64 {
	if len(l.words) == 0 {
		return 0
	}
	return l.used + float64(len(l.words)-1)*space
}

func wrapWords(text string, width float64, f *fonts.Font, size float64) []textLine {
	rows := fitter.Wrap(text, width, f, size)
	lines := make([]textLine, len(rows))
	for i, row := range rows {
		words := strings.Fields(row)
		l := textLine{words: words, widths: make([]float64, len(words))}
		for j, w := range words {
			l.widths[j] = f.TextLength(w, size)
			l.used += l.widths[j]
		}
		lines[i] = l
	}
	return lines
}

// drawableText gofpdf 的字宽表只覆盖 BMP：BMP 以外的字符先做兼容分解
// （数学字母 𝑥 → x），仍在 BMP 以外的替换为 U+FFFD
func drawableText(s string) string {
	astral := false
	for _, r := range s {
		if r > 0xFFFF {
			astral = true
			break
		}
	}
	if !astral {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r <= 0xFFFF {
			sb.WriteRune(r)
			continue
		}
		for _, folded := range norm.NFKC.String(string(r)) {
			if folded > 0xFFFF {
				folded = unicode.ReplacementChar
			}
			sb.WriteRune(folded)
		}
	}
	return sb.String()
}

// Bytes 序列化文档，之后画布不可再用
func (c *FpdfCanvas) Bytes() ([]byte, error) {
	if c.closed {
		return nil, ErrCanvasClosed
	}
	c.closed = true
	var buf bytes.Buffer
	if err := c.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("serialize pdf: %w", err)
	}
	return buf.Bytes(), nil
}

package fitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"pdf-layout-translator/internal/layout"
)

// monoMeasurer 每个字符宽 0.5em
type monoMeasurer struct{}

func (monoMeasurer) TextLength(s string, size float64) float64 {
	return float64(utf8.RuneCountInString(s)) * 0.5 * size
}
func (monoMeasurer) Ascender() float64  { return 0.8 }
func (monoMeasurer) Descender() float64 { return -0.2 }

func TestWrap(t *testing.T) {
	m := monoMeasurer{}
	assert.Equal(t, []string{"aa bb", "cc"}, Wrap("aa bb cc", 5, m, 2))
	assert.Equal(t, []string{"abcdefgh", "x"}, Wrap("abcdefgh x", 3, m, 2))
	assert.Nil(t, Wrap("   ", 10, m, 2))
	assert.Nil(t, Wrap("word", 0, m, 2))
}

func TestSimulateHeight(t *testing.T) {
	p := DefaultParams
	h, n := p.SimulateHeight("aa bb cc", 5, monoMeasurer{}, 2)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 2*1.0*2*1.2, h, 1e-9)

	h, n = p.SimulateHeight("", 5, monoMeasurer{}, 2)
	assert.Zero(t, h)
	assert.Zero(t, n)
}

func TestFitDegenerateInputsReturnMin(t *testing.T) {
	p := DefaultParams
	assert.Equal(t, p.MinSize, p.Fit("", layout.Rect{X0: 0, Y0: 0, X1: 100, Y1: 100}, layout.ClassText, monoMeasurer{}).Size)
	assert.Equal(t, p.MinSize, p.Fit("hello", layout.Rect{X0: 5, Y0: 0, X1: 5, Y1: 100}, layout.ClassText, monoMeasurer{}).Size)
	assert.Equal(t, p.MinSize, p.Fit("hello", layout.Rect{X0: 0, Y0: 7, X1: 100, Y1: 7}, layout.ClassText, monoMeasurer{}).Size)
}

func TestFitCeilingPerClass(t *testing.T) {
	p := DefaultParams
	huge := layout.Rect{X0: 0, Y0: 0, X1: 5000, Y1: 5000}
	m := monoMeasurer{}

	assert.InDelta(t, 22.4, p.Fit("short", huge, layout.ClassText, m).Size, 0.05)
	assert.InDelta(t, 22.4, p.Fit("short", huge, layout.ClassListItem, m).Size, 0.05)
	assert.Equal(t, 28.0, p.Fit("short", huge, layout.ClassTitle, m).Size)
	assert.InDelta(t, 28.0, p.Fit("short", huge, layout.ClassCaption, m).Size, 0.05)
}

func TestFitResultIsBoundedAndFits(t *testing.T) {
	p := DefaultParams
	m := monoMeasurer{}
	text := strings.Repeat("lorem ipsum dolor sit amet ", 20)

	for _, rect := range []layout.Rect{
		{X0: 0, Y0: 0, X1: 300, Y1: 200},
		{X0: 50, Y0: 50, X1: 250, Y1: 90},
		{X0: 0, Y0: 0, X1: 60, Y1: 10},
	} {
		res := p.Fit(text, rect, layout.ClassText, m)
		assert.GreaterOrEqual(t, res.Size, p.MinSize)
		assert.LessOrEqual(t, res.Size, p.MaxSize)
		if res.Size > p.MinSize {
			assert.LessOrEqual(t, res.Height, rect.Height()*p.HeightSlack+1e-9)
		}
	}
}

func TestFitMonotonicInHeight(t *testing.T) {
	p := DefaultParams
	m := monoMeasurer{}
	text := strings.Repeat("segment ", 40)

	small := p.Fit(text, layout.Rect{X0: 0, Y0: 0, X1: 200, Y1: 60}, layout.ClassText, m)
	large := p.Fit(text, layout.Rect{X0: 0, Y0: 0, X1: 200, Y1: 240}, layout.ClassText, m)
	assert.Greater(t, large.Size, small.Size)
}

func TestFitTinyBoxClampsToMin(t *testing.T) {
	p := DefaultParams
	res := p.Fit(strings.Repeat("overflowing ", 200), layout.Rect{X0: 0, Y0: 0, X1: 40, Y1: 5}, layout.ClassText, monoMeasurer{})
	assert.Equal(t, p.MinSize, res.Size)
}

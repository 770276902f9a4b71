package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *Document {
	return &Document{Pages: []Page{{
		Width: 612, Height: 792,
		Boxes: []Box{
			{Class: ClassTitle, X0: 50, Y0: 40, X1: 560, Y1: 70},
			{Class: ClassText, X0: 50, Y0: 100, X1: 560, Y1: 300},
			{Class: ClassListItem, X0: 60, Y0: 310, X1: 560, Y1: 330},
			{Class: ClassCaption, X0: 60, Y0: 500, X1: 560, Y1: 520},
			{Class: ClassPicture, X0: 100, Y0: 340, X1: 500, Y1: 490},
			{Class: ClassFormula, X0: 100, Y0: 600, X1: 300, Y1: 620},
			{Class: ClassPageFooter, X0: 280, Y0: 760, X1: 330, Y1: 772},
		},
	}}}
}

func TestPadAppliesPerClassDeltas(t *testing.T) {
	in := sampleDoc()
	out := Pad(in, DefaultPadding)

	want := map[BoxClass]float64{
		ClassTitle: 3, ClassText: 2.5, ClassListItem: 2.5, ClassCaption: 3,
		ClassPicture: 0, ClassFormula: 0, ClassPageFooter: 3,
	}
	for i, b := range out.Pages[0].Boxes {
		orig := in.Pages[0].Boxes[i]
		d := want[b.Class]
		assert.InDelta(t, orig.Y0-d, b.Y0, 1e-9, "y0 %s", b.Class)
		assert.InDelta(t, orig.Y1+d, b.Y1, 1e-9, "y1 %s", b.Class)
		assert.Equal(t, orig.X0, b.X0)
		assert.Equal(t, orig.X1, b.X1)
	}
}

func TestPadDoesNotMutateInput(t *testing.T) {
	in := sampleDoc()
	in.Pages[0].Boxes[1].TextLines = []TextLine{{Spans: []Span{{Text: "a"}}}}
	before := in.Clone()

	out := Pad(in, DefaultPadding)
	out.Pages[0].Boxes[1].TextLines[0].Spans[0].Text = "changed"

	assert.Equal(t, before, in)
}

func TestDecodeRejectsUnknownClass(t *testing.T) {
	_, err := Decode([]byte(`{"pages":[{"width":100,"height":100,"boxes":[{"boxclass":"sidebar","x0":0,"y0":0,"x1":1,"y1":1}]}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sidebar")

	_, err = Decode([]byte(`{"pages":[{"width":0,"height":100,"boxes":[]}]}`))
	require.Error(t, err)

	doc, err := Decode([]byte(`{"pages":[{"width":100,"height":200,"boxes":[{"boxclass":"text","x0":1,"y0":2,"x1":3,"y1":4,
		"textlines":[{"spans":[{"text":"hi","color":255,"font":"Times","size":10}]}]}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", doc.Pages[0].Boxes[0].TextLines[0].Spans[0].Text)
	assert.Equal(t, Rect{1, 2, 3, 4}, doc.Pages[0].Boxes[0].Rect())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleDoc()
	data, err := in.Encode()
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestClassPredicates(t *testing.T) {
	assert.True(t, ClassTable.IsFigure())
	assert.False(t, ClassTable.IsTranslatable())
	assert.True(t, ClassCaption.IsTranslatable())
	assert.True(t, ClassSectionHeader.IsHeading())
	assert.False(t, BoxClass("unknown").IsTranslatable())
	assert.False(t, Rect{1, 5, 3, 5}.Valid())
	assert.True(t, Rect{1, 2, 3, 4}.Valid())
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"control chars dropped", "Hel\x00lo\u200b world", "Hello world"},
		{"stray marks removed", "re\u0301sume\u0300 x^2 \u02C6a", "resume x2 a"},
		{"spaces collapsed", "a   b\t\tc", "a b c"},
		{"single tab kept", "a\tb", "a\tb"},
		{"dot leaders removed", "Introduction.......... 3", "Introduction 3"},
		{"three dots kept", "wait...", "wait..."},
		{"letters repeated kept", "aaaaa", "aaaaa"},
		{"nfc composed", "A\u030Angstr\u00F6m", "\u00C5ngstr\u00F6m"},
		{"whitespace only", "   \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestConsolidateScenario(t *testing.T) {
	b := Box{
		Class: ClassText, X0: 10, Y0: 20, X1: 200, Y1: 60,
		TextLines: []TextLine{
			{Spans: []Span{{Text: "  Hello  ", Color: 0x000000}, {Text: "", Color: 0x000000}}},
			{Spans: []Span{{Text: "world\u0301", Color: 0xFF0000}}},
		},
	}
	got := Consolidate(b)
	assert.Equal(t, "Hello world", got.Text)
	assert.Equal(t, 0.0, got.Color.R)
	assert.Equal(t, 0.0, got.Color.G)
	assert.Equal(t, 0.0, got.Color.B)
	assert.Equal(t, Rect{10, 20, 200, 60}, got.Rect)
	assert.True(t, got.HasText())
}

func TestConsolidateColorTieGoesToFirst(t *testing.T) {
	b := Box{TextLines: []TextLine{{Spans: []Span{
		{Text: "a", Color: 0x0000FF}, {Text: "b", Color: 0x00FF00},
	}}}}
	got := Consolidate(b)
	assert.InDelta(t, 1.0, got.Color.B, 1e-9)
	assert.InDelta(t, 0.0, got.Color.G, 1e-9)
}

func TestConsolidateEmpty(t *testing.T) {
	got := Consolidate(Box{Class: ClassText})
	assert.False(t, got.HasText())
	assert.Equal(t, DecodeColor(0), got.Color)

	got = Consolidate(Box{TextLines: []TextLine{{Spans: []Span{{Text: "\x01\x02"}}}}})
	assert.Equal(t, "", got.Text)
}

func TestDecodeColor(t *testing.T) {
	c := DecodeColor(0x336699)
	assert.InDelta(t, 0x33/255.0, c.R, 1e-9)
	assert.InDelta(t, 0x66/255.0, c.G, 1e-9)
	assert.InDelta(t, 0x99/255.0, c.B, 1e-9)
}

func TestStats(t *testing.T) {
	s := sampleDoc().Stats()
	assert.Equal(t, 1, s[ClassPicture])
	assert.Equal(t, 1, s[ClassText])
}

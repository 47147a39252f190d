package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(text string, x0, y0 float64) *Fragment {
	return &Fragment{BBox: BBox{X0: x0, X1: x0 + 50, Y0: y0, Y1: y0 + 8}, Text: text}
}

func TestRoundAndEq(t *testing.T) {
	assert.Equal(t, 2.16, Round(572.16-570, 2))
	assert.True(t, Eq(499.9999, 500, 3))
	assert.False(t, Eq(499.99, 500, 3))
	assert.True(t, Eq(-1.449, -1.45, 2))
}

func TestSortTopDownIsStable(t *testing.T) {
	a := line("a", 0, 100)
	b := line("b", 10, 200)
	c := line("c", 20, 100)

	got := SortTopDown([]*Fragment{a, b, c})

	require.Len(t, got, 3)
	assert.Same(t, b, got[0])
	assert.Same(t, a, got[1])
	assert.Same(t, c, got[2])
}

func TestFlattenSplitsOnlyMultiLineBlocks(t *testing.T) {
	l1 := line("one", 0, 110)
	l2 := line("two", 0, 100)
	block := &Fragment{BBox: BBox{Y0: 100, Y1: 118}, Text: "one\ntwo\n", Lines: []*Fragment{l1, l2}}
	single := &Fragment{BBox: BBox{Y0: 80, Y1: 88}, Text: "solo\n", Lines: []*Fragment{line("solo", 0, 80)}}

	got := Flatten([]*Fragment{block, single})

	require.Len(t, got, 3)
	assert.Same(t, l1, got[0])
	assert.Same(t, l2, got[1])
	assert.Same(t, single, got[2])
}

func TestClassifyHighlight(t *testing.T) {
	gray := Color{0.6}
	hl := line("Jane Doe, CFO:", 0, 100)
	hl.Fill = Color{0.6}
	plain := line("text", 0, 90)
	plain.Fill = Color{0}
	mixedBlock := &Fragment{Lines: []*Fragment{
		{Text: "a", Fill: Color{0.6}},
		{Text: "b", Fill: Color{0}},
	}}
	grayBlock := &Fragment{Lines: []*Fragment{
		{Text: "a", Fill: Color{0.6}},
		{Text: "b", Fill: Color{0.6004}},
	}}
	doc := &Document{Pages: []*Page{{Fragments: []*Fragment{hl, plain, mixedBlock, grayBlock}}}}

	doc.Classify(gray)

	assert.Equal(t, Highlighted, hl.Tone)
	assert.Equal(t, Normal, plain.Tone)
	assert.Equal(t, Normal, mixedBlock.Tone)
	assert.Equal(t, Highlighted, grayBlock.Tone)
	assert.Equal(t, Highlighted, grayBlock.Lines[1].Tone)
}

func TestClassifyWithoutHighlightColor(t *testing.T) {
	f := line("x", 0, 0)
	f.Fill = Color{0.6}
	f.Tone = Highlighted
	doc := &Document{Pages: []*Page{{Fragments: []*Fragment{f}}}}

	doc.Classify(nil)

	assert.Equal(t, Normal, f.Tone)
}

func TestColorEqualRequiresSameSpace(t *testing.T) {
	assert.False(t, Color{0.5}.Equal(Color{0.5, 0.5, 0.5}))
	assert.False(t, Color(nil).Equal(nil))
	assert.True(t, Color{1, 0, 0}.Equal(Color{1, 0, 0}))
}

// Package layout holds the positioned-fragment model shared by every
// extraction stage. Coordinates follow PDF conventions: y grows upward.
package layout

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// Failure modes a fragment source may report. Sources wrap these so callers
// can classify the failure with errors.Is.
var (
	ErrUnreadable      = errors.New("file cannot be read")
	ErrInvalidDocument = errors.New("file is not a valid document")
)

// BBox is an axis-aligned bounding box.
type BBox struct {
	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

// Tone is the two-valued color classification of a fragment.
type Tone uint8

const (
	Normal Tone = iota
	Highlighted
)

// Fragment is a piece of positioned text. A text block keeps its lines in
// Lines; a bare line has none.
type Fragment struct {
	BBox
	Text  string      `json:"text"`
	Lines []*Fragment `json:"lines,omitempty"`
	Fill  Color       `json:"color,omitempty"` // uniform fill of the leaf glyphs; nil when mixed or unknown
	Tone  Tone        `json:"-"`
}

// Trimmed returns the fragment text without surrounding whitespace.
func (f *Fragment) Trimmed() string {
	return strings.TrimSpace(f.Text)
}

// MultiLine reports whether the fragment is a block of two or more lines.
func (f *Fragment) MultiLine() bool {
	return len(f.Lines) > 1
}

// Split returns the fragment's lines when it is multi-line, otherwise the
// fragment itself.
func (f *Fragment) Split() []*Fragment {
	if f.MultiLine() {
		return f.Lines
	}
	return []*Fragment{f}
}

// IsBlock reports whether the fragment is a text block rather than a bare line.
func (f *Fragment) IsBlock() bool {
	return len(f.Lines) > 0
}

// Page is one page of positioned fragments in render order.
type Page struct {
	Index     int         `json:"-"`
	Fragments []*Fragment `json:"fragments"`
	Figures   []BBox      `json:"figures,omitempty"`
}

// Document is the whole fragment stream of one source file.
type Document struct {
	Name  string  `json:"name"`
	Pages []*Page `json:"pages"`
}

// Classify sets the Tone of every fragment in the document. A line is
// Highlighted when its fill equals highlight; a block is Highlighted when all
// its lines are.
func (d *Document) Classify(highlight Color) {
	for _, p := range d.Pages {
		for _, f := range p.Fragments {
			classify(f, highlight)
		}
	}
}

func classify(f *Fragment, highlight Color) {
	if len(highlight) == 0 {
		f.Tone = Normal
		for _, l := range f.Lines {
			l.Tone = Normal
		}
		return
	}
	if len(f.Lines) == 0 {
		f.Tone = toneOf(f.Fill.Equal(highlight))
		return
	}
	all := true
	for _, l := range f.Lines {
		classify(l, highlight)
		if l.Tone != Highlighted {
			all = false
		}
	}
	f.Tone = toneOf(all)
}

func toneOf(highlighted bool) Tone {
	if highlighted {
		return Highlighted
	}
	return Normal
}

// Color is a fill color in the document's color space (1 gray, 3 RGB or
// 4 CMYK components).
type Color []float64

// Equal compares two colors component-wise at three decimal places.
func (c Color) Equal(o Color) bool {
	if len(c) == 0 || len(c) != len(o) {
		return false
	}
	for i := range c {
		if !Eq(c[i], o[i], 3) {
			return false
		}
	}
	return true
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// Eq reports whether a and b are equal after rounding to places decimals.
func Eq(a, b float64, places int) bool {
	return Round(a, places) == Round(b, places)
}

// SortTopDown returns a copy of frags ordered from the top of the page down.
// Fragments on the same baseline keep their input order.
func SortTopDown(frags []*Fragment) []*Fragment {
	out := make([]*Fragment, len(frags))
	copy(out, frags)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Y0 > out[j].Y0 })
	return out
}

// Flatten replaces every multi-line block by its lines.
func Flatten(frags []*Fragment) []*Fragment {
	out := make([]*Fragment, 0, len(frags))
	for _, f := range frags {
		out = append(out, f.Split()...)
	}
	return out
}

// Filter returns the fragments for which keep returns true.
func Filter(frags []*Fragment, keep func(*Fragment) bool) []*Fragment {
	var out []*Fragment
	for _, f := range frags {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

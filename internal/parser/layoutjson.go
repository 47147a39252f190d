package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/guidex/internal/layout"
)

// LayoutJSONParser reads a layout dump: pages of fragments that were already
// positioned by an external extractor. Unlike PDFParser it carries fill
// colors, so highlighted labels survive.
//
//	{"pages": [{"figures": [{"x0":0,"x1":594,"y0":715.8,"y1":792}],
//	            "fragments": [{"x0":36,"x1":120,"y0":600,"y1":610,
//	                           "text":"Revenue\n","color":[0.5],
//	                           "lines":[...]}]}]}
type LayoutJSONParser struct{}

type dumpDocument struct {
	Name  string     `json:"name"`
	Pages []dumpPage `json:"pages"`
}

type dumpPage struct {
	Figures   []layout.BBox  `json:"figures"`
	Fragments []dumpFragment `json:"fragments"`
}

type dumpFragment struct {
	layout.BBox
	Text  string         `json:"text"`
	Color []float64      `json:"color,omitempty"`
	Lines []dumpFragment `json:"lines,omitempty"`
}

func (p *LayoutJSONParser) Parse(r io.Reader, filename string) (*layout.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", layout.ErrUnreadable, err)
	}
	var dump dumpDocument
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("%w: %v", layout.ErrInvalidDocument, err)
	}
	if len(dump.Pages) == 0 {
		return nil, fmt.Errorf("%w: no pages", layout.ErrInvalidDocument)
	}

	name := dump.Name
	if name == "" {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	doc := &layout.Document{Name: name}
	for i, dp := range dump.Pages {
		page := &layout.Page{Index: i, Figures: dp.Figures}
		for _, df := range dp.Fragments {
			page.Fragments = append(page.Fragments, df.fragment())
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

func (d dumpFragment) fragment() *layout.Fragment {
	f := &layout.Fragment{BBox: d.BBox, Text: norm.NFC.String(d.Text)}
	if len(d.Color) > 0 {
		f.Fill = layout.Color(d.Color)
	}
	for _, l := range d.Lines {
		f.Lines = append(f.Lines, l.fragment())
	}
	if f.Fill == nil && len(f.Lines) > 0 {
		f.Fill = uniformFill(f.Lines)
	}
	return f
}

// uniformFill returns the shared fill of lines, or nil when they differ.
func uniformFill(lines []*layout.Fragment) layout.Color {
	first := lines[0].Fill
	for _, l := range lines[1:] {
		if !l.Fill.Equal(first) {
			return nil
		}
	}
	return first
}

// WriteLayout writes doc in the format LayoutJSONParser reads. Dumping a PDF
// this way lets its layout be inspected or edited and then re-extracted.
func WriteLayout(w io.Writer, doc *layout.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

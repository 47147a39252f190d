package parser

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/guidex/internal/layout"
)

// Glyph grouping thresholds, relative to the font size of the glyph.
const (
	rowTolerance = 0.25 // baselines closer than this share a row
	wordGap      = 0.15 // a wider horizontal gap inserts a space
	runGap       = 1.5  // a wider horizontal gap starts a new line fragment
	blockGap     = 0.6  // lines closer than this join the same block
	indentSlack  = 2.0  // points of left-edge drift allowed inside a block
)

// PDFParser reads a PDF into positioned text blocks. Glyphs are grouped into
// lines and lines into blocks. Drawn rectangles are reported as page figures.
// The underlying reader exposes no fill colors, so fragments carry no Fill.
type PDFParser struct {
	Validate bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (doc *layout.Document, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", layout.ErrUnreadable, err)
	}

	if p.Validate {
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed
		if err := api.Validate(bytes.NewReader(data), conf); err != nil {
			return nil, fmt.Errorf("%w: %v", layout.ErrInvalidDocument, err)
		}
	}

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", layout.ErrInvalidDocument, err)
	}

	// The reader panics on malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = fmt.Errorf("%w: %v", layout.ErrInvalidDocument, rec)
		}
	}()

	doc = &layout.Document{Name: strings.TrimSuffix(filename, filepath.Ext(filename))}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		lp := &layout.Page{Index: i - 1}
		if !page.V.IsNull() {
			content := page.Content()
			lp.Fragments = groupBlocks(groupLines(content.Text))
			for _, rect := range content.Rect {
				lp.Figures = append(lp.Figures, layout.BBox{
					X0: rect.Min.X, X1: rect.Max.X,
					Y0: rect.Min.Y, Y1: rect.Max.Y,
				})
			}
		}
		doc.Pages = append(doc.Pages, lp)
	}
	return doc, nil
}

// groupLines turns glyphs into line fragments, top of page first.
func groupLines(glyphs []pdflib.Text) []*layout.Fragment {
	var rows [][]pdflib.Text
	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			continue
		}
		placed := false
		for i := range rows {
			ref := rows[i][0]
			if math.Abs(ref.Y-g.Y) <= rowTolerance*size(ref) {
				rows[i] = append(rows[i], g)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, []pdflib.Text{g})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i][0].Y > rows[j][0].Y })

	var lines []*layout.Fragment
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		start := 0
		for i := 1; i <= len(row); i++ {
			if i < len(row) && row[i].X-(row[i-1].X+row[i-1].W) <= runGap*size(row[i-1]) {
				continue
			}
			if l := lineOf(row[start:i]); l != nil {
				lines = append(lines, l)
			}
			start = i
		}
	}
	return lines
}

func lineOf(run []pdflib.Text) *layout.Fragment {
	var sb strings.Builder
	box := layout.BBox{X0: run[0].X, X1: run[0].X + run[0].W, Y0: run[0].Y, Y1: run[0].Y + size(run[0])}
	for i, g := range run {
		if i > 0 {
			prev := run[i-1]
			gap := g.X - (prev.X + prev.W)
			if gap > wordGap*size(prev) && !strings.HasSuffix(sb.String(), " ") && g.S != " " {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
		box.X0 = math.Min(box.X0, g.X)
		box.X1 = math.Max(box.X1, g.X+g.W)
		box.Y0 = math.Min(box.Y0, g.Y)
		box.Y1 = math.Max(box.Y1, g.Y+size(g))
	}
	text := norm.NFC.String(strings.TrimRight(sb.String(), " "))
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return &layout.Fragment{BBox: box, Text: text + "\n"}
}

// groupBlocks stacks lines that share a left edge and sit close together into
// text blocks. Every returned fragment is a block, possibly of one line.
func groupBlocks(lines []*layout.Fragment) []*layout.Fragment {
	var blocks []*layout.Fragment
	for _, l := range lines {
		var target *layout.Fragment
		for _, b := range blocks {
			last := b.Lines[len(b.Lines)-1]
			height := last.Y1 - last.Y0
			if math.Abs(last.X0-l.X0) <= indentSlack && last.Y0-l.Y1 <= blockGap*height && last.Y0 > l.Y0 {
				target = b
			}
		}
		if target == nil {
			blocks = append(blocks, &layout.Fragment{BBox: l.BBox, Text: l.Text, Lines: []*layout.Fragment{l}})
			continue
		}
		target.Lines = append(target.Lines, l)
		target.Text += l.Text
		target.X0 = math.Min(target.X0, l.X0)
		target.X1 = math.Max(target.X1, l.X1)
		target.Y0 = math.Min(target.Y0, l.Y0)
		target.Y1 = math.Max(target.Y1, l.Y1)
	}
	return blocks
}

func size(g pdflib.Text) float64 {
	if g.FontSize > 0 {
		return g.FontSize
	}
	return 10
}

// Package summary rebuilds the guidance summary grid: fiscal-period columns
// across the top, a category/topic/line-item hierarchy down the side, and one
// value per cell.
package summary

import (
	"errors"
	"math"
	"regexp"
	"strings"

	"github.com/dgallion1/guidex/internal/layout"
	"github.com/dgallion1/guidex/internal/record"
	"github.com/dgallion1/guidex/internal/template"
)

// Stage failures. They disable record emission but never the rest of the
// report.
var (
	ErrNoColumns = errors.New("no valid summary columns found")
	ErrNoRows    = errors.New("no summary rows found")
	ErrNoLevels  = errors.New("no summary levels found")
	ErrNoTopics  = errors.New("no summary topics found")
)

// Column is a fiscal-period header.
type Column struct {
	Title string  `json:"title"`
	Right float64 `json:"right"`
	Y0    float64 `json:"y0"`
}

// Origin tells where a row's values are printed.
type Origin uint8

const (
	// SameColumn rows read values on their own page.
	SameColumn Origin = iota
	// PriorColumn rows had their line item printed one page ahead of the
	// issue date, so values are read from the previous page.
	PriorColumn
)

// LineItem is a row header, possibly wrapped over several lines.
type LineItem struct {
	Parts []*layout.Fragment
}

// Text joins the trimmed parts with spaces.
func (li *LineItem) Text() string {
	parts := make([]string, len(li.Parts))
	for i, p := range li.Parts {
		parts[i] = p.Trimmed()
	}
	return strings.Join(parts, " ")
}

// Y0 and Y1 are taken from the first (top) part.
func (li *LineItem) Y0() float64 { return li.Parts[0].Y0 }
func (li *LineItem) Y1() float64 { return li.Parts[0].Y1 }

// Row is one line of the grid on one page.
type Row struct {
	Page     int
	Category *layout.Fragment
	Topic    *layout.Fragment
	Item     *LineItem
	Date     *layout.Fragment
	Origin   Origin
}

// Table is the rebuilt summary grid of one report.
type Table struct {
	Columns []Column
	// Content holds each page's column fragments, indexed [page][column].
	Content    [][][]*layout.Fragment
	Categories [][]*layout.Fragment
	Topics     [][]*layout.Fragment
	Rows       [][]Row
}

// Build reconstructs the grid from the summary pages. The returned error
// joins every stage failure; the table is still returned so that column
// titles can drive detail partitioning.
func Build(c template.Constants, pages []*layout.Page) (*Table, error) {
	t := &Table{}
	if len(pages) == 0 {
		return t, ErrNoColumns
	}
	b := builder{c: c.Summary, body: c.Body, t: t}
	b.discoverColumns(pages[0])
	for _, p := range pages {
		t.Content = append(t.Content, b.columnContent(p))
	}
	if !b.validColumns() {
		return t, ErrNoColumns
	}
	b.hierarchy(pages)

	var errs []error
	if count(t.Rows) == 0 {
		errs = append(errs, ErrNoRows)
	}
	if count(t.Categories) == 0 {
		errs = append(errs, ErrNoLevels)
	}
	if count(t.Topics) == 0 {
		errs = append(errs, ErrNoTopics)
	}
	return t, errors.Join(errs...)
}

type builder struct {
	c    template.Summary
	body func(*layout.Page) []*layout.Fragment
	t    *Table
}

func (b *builder) discoverColumns(first *layout.Page) {
	bs := layout.SortTopDown(layout.Filter(b.body(first), func(f *layout.Fragment) bool {
		return !layout.Eq(f.X0, b.c.IdentifierX, 2)
	}))
	if len(bs) <= b.c.HeaderSkip {
		return
	}
	bs = bs[b.c.HeaderSkip:]
	head := bs[0]
	for _, f := range bs {
		if len(b.t.Columns) == b.c.ColumnCount || !sameRow(head, f) {
			break
		}
		b.t.Columns = append(b.t.Columns, Column{Title: f.Trimmed(), Right: f.X1, Y0: f.Y0})
	}
}

func sameRow(a, b *layout.Fragment) bool {
	return layout.Eq(a.Y0, b.Y0, 1) || layout.Eq(a.Y1, b.Y1, 1)
}

func (b *builder) validColumns() bool {
	if len(b.t.Columns) == 0 {
		return false
	}
	for _, col := range b.t.Columns {
		ok := false
		for _, p := range b.c.PeriodPrefixes {
			if strings.HasPrefix(col.Title, p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// inColumn reports whether a fragment's right edge lines up with the column,
// directly or after the rendering correction.
func (b *builder) inColumn(f *layout.Fragment, col Column) bool {
	return layout.Eq(f.X1, col.Right, 3) || layout.Eq(col.Right-f.X1, b.c.ColumnCorrection, 2)
}

func (b *builder) columnContent(p *layout.Page) [][]*layout.Fragment {
	out := make([][]*layout.Fragment, len(b.t.Columns))
	body := b.body(p)
	for i, col := range b.t.Columns {
		var frags []*layout.Fragment
		for _, f := range body {
			if b.inColumn(f, col) {
				frags = append(frags, f.Split()...)
			}
		}
		frags = layout.SortTopDown(frags)
		if len(frags) > 0 {
			frags = frags[1:]
		}
		out[i] = frags
	}
	return out
}

// span is the vertical extent of a parent in the hierarchy.
type span struct{ top, base float64 }

const (
	abovePage = -1 // the child belongs to the previous page's last parent
	orphan    = -2
)

// owner finds the parent whose band contains y. Parents are sorted top-down;
// parent i governs the band between its own base and the top of parent i+1.
func owner(parents []span, y float64) int {
	if len(parents) == 0 {
		return abovePage
	}
	if y > parents[0].top {
		return abovePage
	}
	for i, p := range parents {
		if i+1 < len(parents) {
			if parents[i+1].top < y && y < p.base {
				return i
			}
			continue
		}
		if y < p.base {
			return i
		}
	}
	return orphan
}

func spans(frags []*layout.Fragment) []span {
	out := make([]span, len(frags))
	for i, f := range frags {
		out[i] = span{top: f.Y1, base: f.Y0}
	}
	return out
}

type topicCtx struct {
	category, topic *layout.Fragment
}

type headCtx struct {
	topicCtx
	item *LineItem
}

func (b *builder) hierarchy(pages []*layout.Page) {
	var (
		prevCategory *layout.Fragment
		prevTopic    *topicCtx
		prevHead     *headCtx
	)
	titleFloor := math.Inf(1)
	for _, col := range b.t.Columns {
		titleFloor = math.Min(titleFloor, col.Y0)
	}

	for pn, p := range pages {
		frags := layout.SortTopDown(layout.Flatten(b.body(p)))
		var dates, rest []*layout.Fragment
		for _, f := range frags {
			if layout.Eq(f.X0, b.c.IdentifierX, 2) {
				dates = append(dates, f)
			} else {
				rest = append(rest, f)
			}
		}
		if pn == len(pages)-1 {
			rest = layout.Filter(rest, func(f *layout.Fragment) bool { return !b.footnote(f) })
		}
		if pn == 0 {
			rest = layout.Filter(rest, func(f *layout.Fragment) bool {
				return layout.Round(f.Y0, 1) < layout.Round(titleFloor, 1)
			})
			dates = layout.Filter(dates, func(f *layout.Fragment) bool {
				return layout.Round(f.Y0, 1) < layout.Round(titleFloor, 1)
			})
		}

		categories, topics := b.splitLevels(layout.Filter(rest, func(f *layout.Fragment) bool {
			return layout.Eq(f.X0, b.c.CategoryX, 2)
		}))
		items := b.mergeWraps(layout.Filter(rest, func(f *layout.Fragment) bool {
			return layout.Eq(f.X0, b.c.LineItemX, 2)
		}))
		b.t.Categories = append(b.t.Categories, categories)
		b.t.Topics = append(b.t.Topics, topics)

		var pageTopics []topicCtx
		var topicFrags []*layout.Fragment
		catSpans := spans(categories)
		for _, tp := range topics {
			ctx := topicCtx{topic: tp}
			switch i := owner(catSpans, tp.Y0); {
			case i == abovePage:
				ctx.category = prevCategory
			case i >= 0:
				ctx.category = categories[i]
			default:
				continue
			}
			pageTopics = append(pageTopics, ctx)
			topicFrags = append(topicFrags, tp)
		}
		if len(categories) > 0 {
			prevCategory = categories[len(categories)-1]
		}

		var heads []headCtx
		topicSpans := spans(topicFrags)
		for _, it := range items {
			var h headCtx
			switch i := owner(topicSpans, it.Y0()); {
			case i == abovePage:
				if prevTopic != nil {
					h.topicCtx = *prevTopic
				}
			case i >= 0:
				h.topicCtx = pageTopics[i]
			default:
				continue
			}
			h.item = it
			heads = append(heads, h)
		}
		if len(pageTopics) > 0 {
			last := pageTopics[len(pageTopics)-1]
			prevTopic = &last
		}

		b.t.Rows = append(b.t.Rows, b.rows(pn, heads, dates, prevHead))
		if len(heads) > 0 {
			last := heads[len(heads)-1]
			prevHead = &last
		}
	}
}

func (b *builder) rows(pn int, heads []headCtx, dates []*layout.Fragment, prev *headCtx) []Row {
	headSpans := make([]span, len(heads))
	for i, h := range heads {
		headSpans[i] = span{top: h.item.Y1(), base: h.item.Y0()}
	}
	dated := make([][]*layout.Fragment, len(heads))
	var rows []Row
	for _, d := range dates {
		switch i := owner(headSpans, d.Y0); {
		case i == abovePage:
			if prev != nil {
				rows = append(rows, row(pn, *prev, d, PriorColumn))
			}
		case i >= 0:
			dated[i] = append(dated[i], d)
		}
	}
	for i, h := range heads {
		if len(dated[i]) == 0 {
			rows = append(rows, row(pn, h, nil, SameColumn))
			continue
		}
		for _, d := range dated[i] {
			rows = append(rows, row(pn, h, d, SameColumn))
		}
	}
	return rows
}

func row(pn int, h headCtx, date *layout.Fragment, origin Origin) Row {
	return Row{Page: pn, Category: h.category, Topic: h.topic, Item: h.item, Date: date, Origin: origin}
}

func (b *builder) footnote(f *layout.Fragment) bool {
	text := f.Trimmed()
	for _, p := range b.c.FootnotePrefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

// splitLevels classifies fragments at the category/topic offset. A fragment
// whose successor sits exactly the category gap below it is a Category.
func (b *builder) splitLevels(frags []*layout.Fragment) (categories, topics []*layout.Fragment) {
	frags = layout.SortTopDown(frags)
	for i, f := range frags {
		if i+1 < len(frags) && layout.Round(f.Y0-frags[i+1].Y0, 2) == layout.Round(b.c.CategoryGap, 2) {
			categories = append(categories, f)
		} else {
			topics = append(topics, f)
		}
	}
	return categories, topics
}

// mergeWraps joins line-item fragments separated by the wrap gap into one
// multi-part line item.
func (b *builder) mergeWraps(frags []*layout.Fragment) []*LineItem {
	frags = layout.SortTopDown(frags)
	var items []*LineItem
	for i, f := range frags {
		if i > 0 && layout.Eq(math.Abs(layout.Round(frags[i-1].Y0-f.Y0, 1)), b.c.WrapGap, 1) {
			last := items[len(items)-1]
			last.Parts = append(last.Parts, f)
			continue
		}
		items = append(items, &LineItem{Parts: []*layout.Fragment{f}})
	}
	return items
}

func count[T any](pages [][]T) int {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	return n
}

var itemInfo = regexp.MustCompile(`^(.*) \((.*)\)`)

// Records emits one Guidance record per resolved (row, column), in page, row
// and column order.
func (t *Table) Records(c template.Constants, reportName string, meta template.Metadata) []record.Guidance {
	var out []record.Guidance
	for _, rows := range t.Rows {
		for _, r := range rows {
			for ci, col := range t.Columns {
				amount, issue, ok := t.resolve(c.Summary, r, ci)
				if !ok {
					continue
				}
				g := record.Guidance{
					ReportName:   reportName,
					CompanyName:  meta.CompanyName,
					FiscalYear:   meta.FiscalYear,
					ReportDate:   meta.ReportDate,
					Category:     text(r.Category),
					Topic:        text(r.Topic),
					CombinedItem: r.Item.Text(),
					FiscalPeriod: col.Title,
					Amount:       amount,
					IssueDate:    issue,
				}
				if m := itemInfo.FindStringSubmatch(g.CombinedItem); m != nil {
					g.LineItem, g.Info = m[1], m[2]
				} else {
					g.LineItem = g.CombinedItem
				}
				out = append(out, g)
			}
		}
	}
	return out
}

// resolve finds the value of row r in column ci.
func (t *Table) resolve(c template.Summary, r Row, ci int) (amount, issue string, ok bool) {
	valuePage := r.Page
	if r.Origin == PriorColumn {
		valuePage--
	}
	if valuePage < 0 || valuePage >= len(t.Content) || r.Page >= len(t.Content) {
		return "", "", false
	}
	own := t.Content[r.Page][ci]

	var value *layout.Fragment
	var offset float64
	for _, f := range t.Content[valuePage][ci] {
		off := layout.Round(f.Y0-r.Item.Y0(), 2)
		if valueOffset(c.Values, off) {
			value, offset = f, off
			break
		}
	}
	if value == nil {
		return "", "", false
	}

	amount = value.Trimmed()
	if offset == layout.Round(c.Values.TrailingMarker, 2) {
		for _, f := range own {
			if f.Trimmed() == c.MarkerSuffix {
				amount += c.MarkerSuffix
				break
			}
		}
	}
	if amount == c.Placeholder || r.Date == nil {
		return amount, "", true
	}
	for _, f := range own {
		if layout.Eq(f.Y0, r.Date.Y0, 2) {
			return amount, f.Trimmed(), true
		}
	}
	return amount, "", true
}

func valueOffset(v template.ValueOffsets, off float64) bool {
	for _, o := range v.All() {
		if layout.Round(o, 2) == off {
			return true
		}
	}
	return false
}

func text(f *layout.Fragment) string {
	if f == nil {
		return ""
	}
	return f.Trimmed()
}

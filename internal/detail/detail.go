// Package detail rebuilds the narrative citation sections of a guidance
// report: each source-type marker closes a section keyed by the running
// category/topic/line-item context, and the citations, amounts and narrative
// around it are attached to that section.
package detail

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dgallion1/guidex/internal/layout"
	"github.com/dgallion1/guidex/internal/template"
)

// Key identifies a section. Category and Date are optional.
type Key struct {
	Period   string
	Page     int
	Category *layout.Fragment
	Topic    *layout.Fragment
	LineItem *layout.Fragment
	Date     *layout.Fragment
	Marker   *layout.Fragment
}

// Section is one narrative citation unit.
type Section struct {
	Key
	// Citations are the source-name lines, top first. Empty when the lead
	// citation beside the marker is missing.
	Citations []*layout.Fragment
	Amounts   []*layout.Fragment
	// Content holds narrative batches in arrival order; each batch is sorted
	// top-down.
	Content [][]*layout.Fragment

	tail    []*layout.Fragment
	grouped bool
}

// anchorTop is the y used to match amount groups to the section.
func (s *Section) anchorTop() float64 {
	if len(s.Citations) > 0 {
		return s.Citations[0].Y0
	}
	return s.Marker.Y0
}

func (s *Section) add(batch []*layout.Fragment) {
	if len(batch) == 0 {
		return
	}
	s.Content = append(s.Content, layout.SortTopDown(batch))
}

// Narrative returns every content fragment in reading order.
func (s *Section) Narrative() []*layout.Fragment {
	var out []*layout.Fragment
	for _, batch := range s.Content {
		out = append(out, batch...)
	}
	return out
}

// Partition is a run of detail pages reporting one fiscal period.
type Partition struct {
	Period string `json:"period"`
	Pages  []int  `json:"pages"`
}

// Result is the rebuilt detail region of one report.
type Result struct {
	Partitions []Partition
	Sections   []*Section
	Checks     []string
}

// Build reconstructs the sections of the detail pages. periods are the
// summary column titles used to split pages by fiscal period.
func Build(c template.Constants, pages []*layout.Page, periods []string) *Result {
	b := &builder{
		c:        c.Detail,
		body:     c.Body,
		pages:    pages,
		res:      &Result{},
		consumed: make(map[*layout.Fragment]bool),
	}
	b.res.Partitions = b.partition(periods)
	for _, part := range b.res.Partitions {
		b.build(part)
	}
	if len(b.carry) > 0 && b.last != nil {
		b.last.add(b.carry)
	}
	return b.res
}

type builder struct {
	c     template.Detail
	body  func(*layout.Page) []*layout.Fragment
	pages []*layout.Page
	res   *Result

	consumed map[*layout.Fragment]bool
	last     *Section           // most recent section in document order
	carry    []*layout.Fragment // marker lines overflowing the previous page
	orphans  []*layout.Fragment // content seen before any section existed
}

func (b *builder) check(format string, args ...any) {
	b.res.Checks = append(b.res.Checks, fmt.Sprintf(format, args...))
}

func (b *builder) partition(periods []string) []Partition {
	var parts []Partition
	for pn, p := range b.pages {
		bs := layout.SortTopDown(b.body(p))
		if len(bs) <= 1 {
			b.check("Check report page %d", pn)
			continue
		}
		titles := bs[:1]
		if pn == 0 {
			titles = []*layout.Fragment{bs[1], bs[0]}
		}
		period, found := matchPeriod(titles, periods)
		if len(parts) == 0 || (found && period != parts[len(parts)-1].Period) {
			parts = append(parts, Partition{Period: period})
		}
		last := &parts[len(parts)-1]
		last.Pages = append(last.Pages, pn)
	}
	return parts
}

func matchPeriod(titles []*layout.Fragment, periods []string) (string, bool) {
	for _, f := range titles {
		for _, p := range periods {
			if p != "" && strings.Contains(f.Text, p) {
				return p, true
			}
		}
	}
	return "", false
}

type entryKind uint8

const (
	headerEntry entryKind = iota
	dateEntry
	markerEntry
)

type entry struct {
	kind entryKind
	f    *layout.Fragment
	tail []*layout.Fragment
}

type pageData struct {
	index    int
	stream   []entry
	content  []*layout.Fragment
	groups   [][]*layout.Fragment
	carry    []*layout.Fragment
	sections []*Section
}

// running is the hierarchy context threaded across headers.
type running struct {
	category, topic, item, date *layout.Fragment
}

func (b *builder) build(part Partition) {
	data := make([]*pageData, len(part.Pages))
	for i, pn := range part.Pages {
		data[i] = b.extract(pn, b.pages[pn])
	}

	var ctx running
	for i, pd := range data {
		var next *pageData
		if i+1 < len(data) {
			next = data[i+1]
		}
		b.sections(part.Period, pd, next, &ctx)
		b.cite(pd)
		b.res.Sections = append(b.res.Sections, pd.sections...)
	}
	b.group(data)
	for _, pd := range data {
		b.distribute(part.Period, pd)
	}
}

func (b *builder) isMarker(f *layout.Fragment) bool {
	return layout.Eq(f.X1, b.c.SourceTypeRight, 3)
}

func (b *builder) atHeader(x float64) bool {
	return layout.Eq(x, b.c.TopicX, 2) || layout.Eq(x, b.c.LineItemX, 2)
}

func (b *builder) extract(pn int, p *layout.Page) *pageData {
	pd := &pageData{index: pn}
	var headers, dates, markers, candidates []*layout.Fragment
	for _, f := range b.body(p) {
		if b.isMarker(f) {
			markers = append(markers, f)
			continue
		}
		for _, l := range f.Split() {
			switch {
			case layout.Eq(l.X0, b.c.DateX, 2):
				dates = append(dates, l)
			case b.atHeader(l.X0):
				headers = append(headers, l)
			}
		}
		switch {
		case layout.Eq(f.X0, b.c.ContentX, 2):
			pd.content = append(pd.content, f.Split()...)
		case f.X0 < b.c.ContentX && !b.atHeader(f.X0) && !layout.Eq(f.X0, b.c.DateX, 2):
			candidates = append(candidates, f)
		}
	}

	for _, h := range headers {
		pd.stream = append(pd.stream, entry{kind: headerEntry, f: h})
	}
	for _, d := range dates {
		pd.stream = append(pd.stream, entry{kind: dateEntry, f: d})
	}
	markers = layout.SortTopDown(markers)
	for i, m := range markers {
		lines := m.Split()
		e := entry{kind: markerEntry, f: lines[0]}
		if len(lines) > 1 {
			if i == len(markers)-1 {
				pd.carry = lines[1:]
			} else {
				e.tail = lines[1:]
			}
		}
		pd.stream = append(pd.stream, e)
	}
	sort.SliceStable(pd.stream, func(i, j int) bool { return pd.stream[i].f.Y0 > pd.stream[j].f.Y0 })

	pd.content = layout.SortTopDown(pd.content)
	pd.groups = b.cluster(layout.SortTopDown(candidates))
	return pd
}

// cluster groups fragments whose successive y0 differ by at most the group gap.
func (b *builder) cluster(frags []*layout.Fragment) [][]*layout.Fragment {
	var groups [][]*layout.Fragment
	for _, f := range frags {
		if n := len(groups); n > 0 {
			last := groups[n-1][len(groups[n-1])-1]
			if math.Abs(layout.Round(f.Y0-last.Y0, 0)) <= b.c.GroupGap {
				groups[n-1] = append(groups[n-1], f)
				continue
			}
		}
		groups = append(groups, []*layout.Fragment{f})
	}
	return groups
}

// sections walks the header stream, threading context and closing a section
// at each source-type marker.
func (b *builder) sections(period string, pd, next *pageData, ctx *running) {
	for i, e := range pd.stream {
		switch e.kind {
		case markerEntry:
			pd.sections = append(pd.sections, &Section{
				Key: Key{
					Period:   period,
					Page:     pd.index,
					Category: ctx.category,
					Topic:    ctx.topic,
					LineItem: ctx.item,
					Date:     ctx.date,
					Marker:   e.f,
				},
				tail: e.tail,
			})
		case dateEntry:
			ctx.date = e.f
		case headerEntry:
			// An issue date belongs to the header it follows.
			ctx.date = nil
			switch {
			case !layout.Eq(e.f.X0, b.c.TopicX, 2):
				ctx.item = e.f
			case b.isCategory(pd, i, next):
				ctx.category = e.f
			default:
				ctx.topic = e.f
			}
		}
	}
}

// isCategory reports whether the topic-offset header at stream position i is
// a Category: the next header is a line item exactly the category gap below,
// or the header ends the page and the next page opens with a line item.
func (b *builder) isCategory(pd *pageData, i int, next *pageData) bool {
	h := pd.stream[i].f
	if i+1 < len(pd.stream) {
		n := pd.stream[i+1]
		return n.kind == headerEntry &&
			layout.Eq(n.f.X0, b.c.LineItemX, 2) &&
			layout.Round(h.Y0-n.f.Y0, 2) == layout.Round(b.c.CategoryGap, 2)
	}
	if next == nil || len(next.stream) == 0 {
		return false
	}
	n := next.stream[0]
	return layout.Eq(h.Y0, b.c.PageEndY, 2) &&
		n.kind == headerEntry &&
		layout.Eq(n.f.Y0, b.c.NextPageTopY, 2) &&
		layout.Eq(n.f.X0, b.c.LineItemX, 2)
}

// cite finds each section's citation chain: the content line level with the
// marker, then lines stacked exactly one citation step above it.
func (b *builder) cite(pd *pageData) {
	for _, s := range pd.sections {
		src := b.find(pd.content, func(f *layout.Fragment) bool {
			return layout.Eq(f.Y0, s.Marker.Y0, 2)
		})
		for src != nil {
			b.consumed[src] = true
			s.Citations = append([]*layout.Fragment{src}, s.Citations...)
			want := layout.Round(src.Y0+b.c.CitationStep, 2)
			src = b.find(pd.content, func(f *layout.Fragment) bool {
				return layout.Round(f.Y0, 2) == want
			})
		}
	}
}

func (b *builder) find(frags []*layout.Fragment, match func(*layout.Fragment) bool) *layout.Fragment {
	for _, f := range frags {
		if !b.consumed[f] && match(f) {
			return f
		}
	}
	return nil
}

// group attaches amount clusters to sections.
func (b *builder) group(data []*pageData) {
	var pending [][]*layout.Fragment
	for i, pd := range data {
		if len(pd.sections) == 0 {
			for _, g := range pd.groups {
				if s := lastSectionBefore(data, i); s != nil && !s.grouped {
					s.Amounts, s.grouped = g, true
					continue
				}
				pending = append(pending, g)
			}
			continue
		}
		for _, g := range pending {
			for _, s := range pd.sections {
				if !s.grouped {
					s.Amounts, s.grouped = g, true
					break
				}
			}
		}
		pending = nil
		for _, g := range pd.groups {
			// Nearest open section within tolerance; ties go to the lower one.
			var match *Section
			best := math.Inf(1)
			for _, s := range pd.sections {
				if s.grouped {
					continue
				}
				if d := math.Abs(s.anchorTop() - g[0].Y0); d < b.c.AnchorTolerance && d <= best {
					match, best = s, d
				}
			}
			if match == nil {
				pending = append(pending, g)
				continue
			}
			match.Amounts, match.grouped = g, true
		}
	}

	var prev *Section
	for _, pd := range data {
		for _, s := range pd.sections {
			if !s.grouped && prev != nil {
				s.Amounts = prev.Amounts
			}
			prev = s
		}
	}
}

// lastSectionBefore walks back from page i to the nearest page with sections.
func lastSectionBefore(data []*pageData, i int) *Section {
	for j := i - 1; j >= 0; j-- {
		if n := len(data[j].sections); n > 0 {
			return data[j].sections[n-1]
		}
	}
	return nil
}

// distribute assigns the page's narrative content to sections.
func (b *builder) distribute(period string, pd *pageData) {
	if len(b.carry) > 0 {
		b.last.add(b.carry)
		b.carry = nil
	}

	content := b.unconsumed(pd.content)
	if len(pd.sections) == 0 {
		if b.last == nil {
			if len(content) > 0 {
				b.check("Error on report page %d of %s", pd.index, period)
				b.orphans = append(b.orphans, content...)
				b.consume(content)
			}
		} else {
			b.last.add(content)
			b.consume(content)
		}
		b.carry = pd.carry
		return
	}

	first := pd.sections[0]
	if len(b.orphans) > 0 {
		first.add(b.orphans)
		b.orphans = nil
	}
	if b.last != nil {
		lead := layout.Filter(content, func(f *layout.Fragment) bool {
			return f.Y0 > first.Marker.Y1 && f.Y0-first.Marker.Y1 >= b.c.LeadGap && f.Tone != layout.Highlighted
		})
		b.last.add(lead)
		b.consume(lead)
	}

	bands := make(map[*Section][]*layout.Fragment, len(pd.sections))
	for i, s := range pd.sections {
		band := layout.Filter(b.unconsumed(content), func(f *layout.Fragment) bool {
			if i+1 < len(pd.sections) {
				return pd.sections[i+1].Marker.Y1 < f.Y0 && f.Y0 < s.Marker.Y0
			}
			return f.Y0 < s.Marker.Y0
		})
		bands[s] = band
		b.consume(band)
	}

	// Content outside every band joins the band of the section above it, so
	// it is read in page order with the rest of that section.
	for _, f := range b.unconsumed(content) {
		target := pd.sections[0]
		for _, s := range pd.sections {
			if s.Marker.Y0 >= f.Y0 {
				target = s
			}
		}
		bands[target] = append(bands[target], f)
		b.consumed[f] = true
	}
	for _, s := range pd.sections {
		s.add(bands[s])
		s.add(s.tail)
	}

	b.last = pd.sections[len(pd.sections)-1]
	b.carry = pd.carry
}

func (b *builder) unconsumed(frags []*layout.Fragment) []*layout.Fragment {
	return layout.Filter(frags, func(f *layout.Fragment) bool { return !b.consumed[f] })
}

func (b *builder) consume(frags []*layout.Fragment) {
	for _, f := range frags {
		b.consumed[f] = true
	}
}

// Package template knows the closed set of guidance report layouts and the
// geometric constants each one is parsed with.
package template

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/guidex/internal/layout"
)

// ErrUnsupported is returned when a cover page matches no known variant.
var ErrUnsupported = errors.New("unsupported report version")

// Variant names one known report layout.
type Variant string

const (
	V1 Variant = "v1"
	V2 Variant = "v2"
	V3 Variant = "v3"
)

// Variants lists the known variants in classification order.
var Variants = []Variant{V1, V2, V3}

// Figure is the (y0, x1) signature of a cover figure.
type Figure struct {
	Y0 float64 `yaml:"y0"`
	X1 float64 `yaml:"x1"`
}

// Cover holds the cover page signature and metadata positions.
type Cover struct {
	Title       string  `yaml:"title"`
	Figure      *Figure `yaml:"figure"`
	Style       string  `yaml:"style"` // "fiscal_year" or "fy_generated"
	TitleIndex  int     `yaml:"title_index"`
	DateIndex   int     `yaml:"date_index"`
	ReportIndex int     `yaml:"report_index"` // position of the period report title on a body page
	ReportFold  bool    `yaml:"report_fold"`  // case-insensitive period report title match
	ReportBlock bool    `yaml:"report_block"` // period report title must be a text block
}

// ValueOffsets are the vertical offsets of a value from its line item.
type ValueOffsets struct {
	Direct         float64 `yaml:"direct"`
	DateAbove      float64 `yaml:"date_above"`
	Parenthetical  float64 `yaml:"parenthetical"`
	TrailingMarker float64 `yaml:"trailing_marker"`
}

// All returns the offsets in lookup order.
func (v ValueOffsets) All() []float64 {
	return []float64{v.Direct, v.TrailingMarker, v.Parenthetical, v.DateAbove}
}

// Summary holds the summary table constants.
type Summary struct {
	CategoryX        float64      `yaml:"category_x"`
	LineItemX        float64      `yaml:"line_item_x"`
	IdentifierX      float64      `yaml:"identifier_x"`
	WrapGap          float64      `yaml:"wrap_gap"`
	CategoryGap      float64      `yaml:"category_gap"`
	ColumnCorrection float64      `yaml:"column_correction"`
	HeaderSkip       int          `yaml:"header_skip"`
	ColumnCount      int          `yaml:"column_count"`
	PeriodPrefixes   []string     `yaml:"period_prefixes"`
	FootnotePrefixes []string     `yaml:"footnote_prefixes"`
	Values           ValueOffsets `yaml:"values"`
	MarkerSuffix     string       `yaml:"marker_suffix"`
	Placeholder      string       `yaml:"placeholder"`
}

// Detail holds the narrative section constants.
type Detail struct {
	TopicX          float64 `yaml:"topic_x"`
	LineItemX       float64 `yaml:"line_item_x"`
	DateX           float64 `yaml:"date_x"`
	ContentX        float64 `yaml:"content_x"`
	SourceTypeRight float64 `yaml:"source_type_right"`
	NextPageTopY    float64 `yaml:"next_page_top_y"`
	PageEndY        float64 `yaml:"page_end_y"`
	CategoryGap     float64 `yaml:"category_gap"`
	GroupGap        float64 `yaml:"group_gap"`
	CitationStep    float64 `yaml:"citation_step"`
	AnchorTolerance float64 `yaml:"anchor_tolerance"`
	LeadGap         float64 `yaml:"lead_gap"`
}

// Constants is the full constants table of one variant.
type Constants struct {
	PageTop    float64      `yaml:"page_top"`
	PageBottom float64      `yaml:"page_bottom"`
	Highlight  layout.Color `yaml:"highlight"`
	Cover      Cover        `yaml:"cover"`
	Summary    Summary      `yaml:"summary"`
	Detail     Detail       `yaml:"detail"`
}

// Body returns the page fragments inside the header/footer band, in render order.
func (c Constants) Body(p *layout.Page) []*layout.Fragment {
	return layout.Filter(p.Fragments, func(f *layout.Fragment) bool {
		return c.PageTop > f.Y0 && f.Y0 > c.PageBottom
	})
}

// Table maps each variant to its constants. It is read-only once loaded and
// shared by every document.
type Table map[Variant]Constants

//go:embed templates.yaml
var defaultTable []byte

// Default returns the built-in constants table.
func Default() Table {
	t, err := decode(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("template: built-in table: %v", err))
	}
	return t
}

// Load reads a constants table from a YAML file. Variants missing from the
// file keep their built-in constants.
func Load(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}
	override, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse templates %s: %w", path, err)
	}
	t := Default()
	for v, c := range override {
		t[v] = c
	}
	return t, t.Validate()
}

func decode(data []byte) (Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that every known variant is present and sane.
func (t Table) Validate() error {
	for v, c := range t {
		if !known(v) {
			return fmt.Errorf("unknown variant %q", v)
		}
		if c.PageTop <= c.PageBottom {
			return fmt.Errorf("%s: page_top must be above page_bottom", v)
		}
		if c.Summary.ColumnCount <= 0 {
			return fmt.Errorf("%s: summary.column_count must be > 0", v)
		}
		if c.Cover.Title == "" && c.Cover.Figure == nil {
			return fmt.Errorf("%s: cover needs a title or a figure signature", v)
		}
	}
	for _, v := range Variants {
		if _, ok := t[v]; !ok {
			return fmt.Errorf("missing variant %q", v)
		}
	}
	return nil
}

func known(v Variant) bool {
	for _, k := range Variants {
		if k == v {
			return true
		}
	}
	return false
}

package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/guidex/internal/layout"
)

func text(s string) *layout.Fragment {
	return &layout.Fragment{Text: s + "\n"}
}

func TestDefaultTableIsValid(t *testing.T) {
	tbl := Default()
	require.NoError(t, tbl.Validate())
	for _, v := range Variants {
		c := tbl[v]
		assert.Equal(t, 11.46, c.Summary.CategoryGap, v)
		assert.Equal(t, 3.06, c.Summary.ColumnCorrection, v)
		assert.Equal(t, 17.0, c.Detail.AnchorTolerance, v)
	}
	assert.Equal(t, 742.0, tbl[V1].PageTop)
	assert.Equal(t, 76.88, tbl[V3].PageBottom)
}

func TestClassifyVariants(t *testing.T) {
	tbl := Default()

	tests := []struct {
		name  string
		cover *layout.Page
		want  Variant
	}{
		{
			name:  "v1 title",
			cover: &layout.Page{Fragments: []*layout.Fragment{text("Guidance Summary")}},
			want:  V1,
		},
		{
			name: "v2 figure",
			cover: &layout.Page{
				Fragments: []*layout.Fragment{text("Something else")},
				Figures:   []layout.BBox{{X0: 10, X1: 594, Y0: 715.8, Y1: 780}},
			},
			want: V2,
		},
		{
			name:  "v3 figure",
			cover: &layout.Page{Figures: []layout.BBox{{X1: 977.88, Y0: 677.0121}}},
			want:  V3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, c, err := tbl.Classify(tt.cover)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tbl[tt.want].PageTop, c.PageTop)
		})
	}
}

func TestClassifyUnsupported(t *testing.T) {
	tbl := Default()
	covers := []*layout.Page{
		nil,
		{},
		{Fragments: []*layout.Fragment{text("Annual Report")}},
		{Figures: []layout.BBox{{X1: 594, Y0: 700}}},
		{Figures: []layout.BBox{{X1: 977.88, Y0: 715.8}}},
	}
	for i, cover := range covers {
		v, _, err := tbl.Classify(cover)
		assert.ErrorIs(t, err, ErrUnsupported, "cover %d", i)
		assert.Empty(t, v)
	}
}

func TestExtractMetadataFiscalYear(t *testing.T) {
	c := Default()[V1]
	cover := &layout.Page{Fragments: []*layout.Fragment{
		text("Guidance Summary"),
		text("ignored"),
		text("Acme Widgets Inc - ACME\nFiscal Year 2024"),
		text("Report Generated: 03/04/2024 09:15 AM"),
	}}

	m := c.ExtractMetadata(cover)

	assert.Equal(t, Metadata{
		CompanyName: "Acme Widgets Inc - ACME",
		CompanyAbbr: "ACME",
		FiscalYear:  "2024",
		ReportDate:  "03/04/2024 09:15 AM",
	}, m)
}

func TestExtractMetadataGenerated(t *testing.T) {
	c := Default()[V2]

	withAbbr := &layout.Page{Fragments: []*layout.Fragment{
		text("logo"),
		text("Acme Widgets Inc - ACME / FY 2025 REPORT GENERATED: 01/02/2025"),
	}}
	m := c.ExtractMetadata(withAbbr)
	assert.Equal(t, "Acme Widgets Inc - ACME", m.CompanyName)
	assert.Equal(t, "ACME", m.CompanyAbbr)
	assert.Equal(t, "2025", m.FiscalYear)
	assert.Equal(t, "01/02/2025", m.ReportDate)

	noAbbr := &layout.Page{Fragments: []*layout.Fragment{
		text("logo"),
		text("Acme Widgets Inc / FY 2025 REPORT GENERATED: 01/02/2025"),
	}}
	m = c.ExtractMetadata(noAbbr)
	assert.Equal(t, "Acme Widgets Inc", m.CompanyName)
	assert.Empty(t, m.CompanyAbbr)
}

func TestExtractMetadataNoMatchLeavesFieldsEmpty(t *testing.T) {
	c := Default()[V3]
	m := c.ExtractMetadata(&layout.Page{Fragments: []*layout.Fragment{text("x"), text("not a title")}})
	assert.Equal(t, Metadata{}, m)

	m = c.ExtractMetadata(&layout.Page{})
	assert.Equal(t, Metadata{}, m)
}

func TestBodyBand(t *testing.T) {
	c := Default()[V1]
	in := &layout.Fragment{BBox: layout.BBox{Y0: 400}}
	top := &layout.Fragment{BBox: layout.BBox{Y0: 742}}
	bottom := &layout.Fragment{BBox: layout.BBox{Y0: 66.995}}

	got := c.Body(&layout.Page{Fragments: []*layout.Fragment{top, in, bottom}})

	require.Len(t, got, 1)
	assert.Same(t, in, got[0])
}

func TestLoadOverridesVariant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	yml := `
v1:
  page_top: 700
  page_bottom: 50
  cover:
    title: "Custom Title"
    style: fiscal_year
  summary:
    column_count: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 700.0, tbl[V1].PageTop)
	assert.Equal(t, "Custom Title", tbl[V1].Cover.Title)
	assert.Equal(t, 4, tbl[V1].Summary.ColumnCount)
	assert.Equal(t, 758.0, tbl[V2].PageTop)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v1:\n  page_topp: 1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)
	assert.Len(t, tbl, 3)
}

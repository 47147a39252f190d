package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/guidex/internal/layout"
	"github.com/dgallion1/guidex/internal/template"
)

func frag(text string, x0, x1, y0 float64) *layout.Fragment {
	return &layout.Fragment{BBox: layout.BBox{X0: x0, X1: x1, Y0: y0, Y1: y0 + 8}, Text: text + "\n"}
}

func v1() template.Constants {
	return template.Default()[template.V1]
}

// header returns the two header fragments and one column title row.
func header(titles ...string) []*layout.Fragment {
	out := []*layout.Fragment{
		frag("ACME Guidance Summary", 100, 300, 700),
		frag("Fiscal Year 2024", 100, 300, 690),
	}
	for i, title := range titles {
		right := 500 + float64(i)*60
		out = append(out, frag(title, right-40, right, 650))
	}
	return out
}

func page(frags ...*layout.Fragment) *layout.Page {
	return &layout.Page{Fragments: frags}
}

func TestMinimalSummaryProducesOneRecord(t *testing.T) {
	amount := frag("$1.2B - $1.4B", 450, 500, 572.16)
	p := page(append(header("Q1 2024"),
		frag("Earnings", 36, 120, 600),
		frag("Revenue", 36, 120, 588.54),
		frag("Net Sales", 46, 140, 570),
		amount,
	)...)

	tbl, err := Build(v1(), []*layout.Page{p})
	require.NoError(t, err)
	require.Len(t, tbl.Columns, 1)

	meta := template.Metadata{CompanyName: "Acme - ACME", FiscalYear: "2024", ReportDate: "01/02/2024"}
	recs := tbl.Records(v1(), "ACME.pdf", meta)

	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, "Q1 2024", r.FiscalPeriod)
	assert.Equal(t, "$1.2B - $1.4B", r.Amount)
	assert.Equal(t, "Earnings", r.Category)
	assert.Equal(t, "Revenue", r.Topic)
	assert.Equal(t, "Net Sales", r.LineItem)
	assert.Equal(t, "Net Sales", r.CombinedItem)
	assert.Empty(t, r.Info)
	assert.Empty(t, r.IssueDate)
	assert.Equal(t, "ACME.pdf", r.ReportName)
	assert.Equal(t, "Acme - ACME", r.CompanyName)
}

func TestColumnTolerance(t *testing.T) {
	b := builder{c: v1().Summary}
	col := Column{Title: "Q1 2024", Right: 500}

	assert.True(t, b.inColumn(frag("a", 450, 500.0004, 0), col))
	assert.True(t, b.inColumn(frag("b", 450, 496.94, 0), col))
	assert.False(t, b.inColumn(frag("c", 450, 496.5, 0), col))
	assert.False(t, b.inColumn(frag("d", 450, 500.01, 0), col))
}

func TestColumnContentDropsHeaderAndSplitsBlocks(t *testing.T) {
	l1 := frag("100", 480, 500, 400)
	l2 := frag("200", 480, 500, 390)
	block := &layout.Fragment{BBox: layout.BBox{X0: 480, X1: 500, Y0: 390, Y1: 408}, Text: "100\n200\n", Lines: []*layout.Fragment{l1, l2}}
	corrected := frag("300", 470, 496.94, 300)
	b := builder{c: v1().Summary, body: v1().Body, t: &Table{Columns: []Column{{Title: "Q1 2024", Right: 500}}}}

	got := b.columnContent(page(frag("Q1 2024", 460, 500, 650), block, corrected, frag("x", 10, 20, 350)))

	require.Len(t, got, 1)
	assert.Equal(t, []*layout.Fragment{l1, l2, corrected}, got[0])
}

func TestHierarchyPartitionsCategoryOffset(t *testing.T) {
	atOffset := []*layout.Fragment{
		frag("Earnings", 36, 120, 600),
		frag("Revenue", 36, 120, 588.54),
		frag("Margins", 36, 120, 500),
		frag("Cash Flow", 36, 120, 450),
		frag("Free Cash Flow", 36, 120, 438.54),
	}
	b := builder{c: v1().Summary}

	cats, topics := b.splitLevels(atOffset)

	assert.Len(t, cats, 2)
	assert.Len(t, topics, 3)
	seen := map[*layout.Fragment]int{}
	for _, f := range cats {
		seen[f]++
	}
	for _, f := range topics {
		seen[f]++
	}
	for _, f := range atOffset {
		assert.Equal(t, 1, seen[f], f.Trimmed())
	}
	assert.Equal(t, "Earnings", cats[0].Trimmed())
	assert.Equal(t, "Cash Flow", cats[1].Trimmed())
}

func TestInvalidColumnsDisableRows(t *testing.T) {
	p := page(append(header("Guidance"),
		frag("Earnings", 36, 120, 600),
		frag("Revenue", 36, 120, 588.54),
	)...)

	tbl, err := Build(v1(), []*layout.Page{p})

	assert.ErrorIs(t, err, ErrNoColumns)
	require.Len(t, tbl.Columns, 1)
	assert.Equal(t, "Guidance", tbl.Columns[0].Title)
	assert.Empty(t, tbl.Rows)
}

func TestMissingLevelsAreReported(t *testing.T) {
	p := page(append(header("Q1 2024", "Q2 2024"),
		frag("Revenue", 36, 120, 600),
		frag("Net Sales", 46, 140, 570),
		frag("10", 480, 500, 572.16),
	)...)

	tbl, err := Build(v1(), []*layout.Page{p})

	assert.ErrorIs(t, err, ErrNoLevels)
	assert.NotErrorIs(t, err, ErrNoTopics)
	assert.NotErrorIs(t, err, ErrNoRows)
	assert.Len(t, tbl.Columns, 2)
}

func TestPriorColumnRowReadsPreviousPage(t *testing.T) {
	first := page(append(header("Q1 2024"),
		frag("Earnings", 36, 120, 600),
		frag("Revenue", 36, 120, 588.54),
		frag("Net Sales", 46, 140, 200),
		frag("$5M", 470, 500, 202.16),
	)...)
	second := page(
		frag("Q1 2024", 460, 500, 650),
		frag("Issued", 250.56, 300, 640),
		frag("01/15/2024", 440, 500, 640),
	)

	tbl, err := Build(v1(), []*layout.Page{first, second})
	require.NoError(t, err)

	require.Len(t, tbl.Rows, 2)
	require.Len(t, tbl.Rows[1], 1)
	assert.Equal(t, PriorColumn, tbl.Rows[1][0].Origin)

	recs := tbl.Records(v1(), "r", template.Metadata{})
	require.Len(t, recs, 2)
	assert.Equal(t, "$5M", recs[0].Amount)
	assert.Empty(t, recs[0].IssueDate)
	assert.Equal(t, "$5M", recs[1].Amount)
	assert.Equal(t, "01/15/2024", recs[1].IssueDate)
}

func TestValueVariants(t *testing.T) {
	p := page(append(header("Q1 2024"),
		frag("Earnings", 36, 120, 600),
		frag("Revenue", 36, 120, 588.54),
		// wrapped line item with a parenthetical
		frag("Capital Expenditure", 46, 200, 500),
		frag("(GAAP)", 46, 200, 490.4),
		frag("Issued", 250.56, 300, 498),
		frag("~$2B", 470, 500, 498.55),
		frag("*", 495, 500, 480),
		frag("03/01/2024", 440, 500, 498),
		// placeholder value with a date
		frag("Tax Rate", 46, 200, 300),
		frag("Issued", 250.56, 300, 298),
		frag("--", 480, 500, 302.16),
		frag("02/01/2024", 440, 500, 298),
	)...)

	tbl, err := Build(v1(), []*layout.Page{p})
	require.NoError(t, err)
	recs := tbl.Records(v1(), "r", template.Metadata{})

	require.Len(t, recs, 2)
	assert.Equal(t, "Capital Expenditure (GAAP)", recs[0].CombinedItem)
	assert.Equal(t, "Capital Expenditure", recs[0].LineItem)
	assert.Equal(t, "GAAP", recs[0].Info)
	assert.Equal(t, "~$2B*", recs[0].Amount)
	assert.Equal(t, "03/01/2024", recs[0].IssueDate)

	assert.Equal(t, "Tax Rate", recs[1].LineItem)
	assert.Equal(t, "--", recs[1].Amount)
	assert.Empty(t, recs[1].IssueDate)
}

func TestFootnotesDroppedOnLastPage(t *testing.T) {
	p := page(append(header("Q1 2024"),
		frag("Earnings", 36, 120, 600),
		frag("Revenue", 36, 120, 588.54),
		frag("* Non-GAAP", 36, 120, 100),
	)...)

	tbl, err := Build(v1(), []*layout.Page{p})
	require.ErrorIs(t, err, ErrNoRows)

	require.Len(t, tbl.Topics, 1)
	assert.Len(t, tbl.Topics[0], 1)
	assert.Equal(t, "Revenue", tbl.Topics[0][0].Trimmed())
}

func TestOwner(t *testing.T) {
	parents := []span{{top: 610, base: 600}, {top: 510, base: 500}}

	assert.Equal(t, abovePage, owner(parents, 620))
	assert.Equal(t, 0, owner(parents, 550))
	assert.Equal(t, 1, owner(parents, 400))
	assert.Equal(t, orphan, owner(parents, 505))
	assert.Equal(t, abovePage, owner(nil, 100))
}

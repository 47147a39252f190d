package template

import (
	"regexp"
	"strings"

	"github.com/dgallion1/guidex/internal/layout"
)

// Classify selects the variant whose cover signature matches the cover page.
// Variants are tried in order and the first match wins.
func (t Table) Classify(cover *layout.Page) (Variant, Constants, error) {
	for _, v := range Variants {
		c, ok := t[v]
		if !ok {
			continue
		}
		if c.Cover.matches(cover) {
			return v, c, nil
		}
	}
	return "", Constants{}, ErrUnsupported
}

func (c Cover) matches(p *layout.Page) bool {
	if p == nil {
		return false
	}
	if c.Title != "" && len(p.Fragments) > 0 && p.Fragments[0].Trimmed() == c.Title {
		return true
	}
	if c.Figure == nil {
		return false
	}
	for _, fig := range p.Figures {
		if layout.Eq(fig.Y0, c.Figure.Y0, 3) && layout.Eq(fig.X1, c.Figure.X1, 3) {
			return true
		}
	}
	return false
}

// Metadata is the report identity printed on the cover page.
type Metadata struct {
	CompanyName string `json:"company_name"`
	CompanyAbbr string `json:"company_abbr"`
	FiscalYear  string `json:"fiscal_year"`
	ReportDate  string `json:"report_date"`
}

var (
	fiscalYearTitle = regexp.MustCompile(`^((.*) - (.*)) Fiscal Year (\d{4})`)
	generatedLine   = regexp.MustCompile(`^Report Generated: (.*)`)
	fyGeneratedLine = regexp.MustCompile(`^([^-]*( - (.*))?) / FY (\d{4}) REPORT GENERATED: (.*)`)
)

// ExtractMetadata reads the cover page fields. Fields whose fragment is
// missing or does not match stay empty.
func (c Constants) ExtractMetadata(cover *layout.Page) Metadata {
	var m Metadata
	if cover == nil {
		return m
	}
	title := coverText(cover, c.Cover.TitleIndex)
	switch c.Cover.Style {
	case "fiscal_year":
		if g := fiscalYearTitle.FindStringSubmatch(title); g != nil {
			m.CompanyName, m.CompanyAbbr, m.FiscalYear = g[1], g[3], g[4]
		}
		if g := generatedLine.FindStringSubmatch(coverText(cover, c.Cover.DateIndex)); g != nil {
			m.ReportDate = strings.TrimSpace(g[1])
		}
	case "fy_generated":
		if g := fyGeneratedLine.FindStringSubmatch(title); g != nil {
			m.CompanyName, m.CompanyAbbr, m.FiscalYear, m.ReportDate = g[1], g[3], g[4], strings.TrimSpace(g[5])
		}
	}
	return m
}

func coverText(p *layout.Page, i int) string {
	if i < 0 || i >= len(p.Fragments) {
		return ""
	}
	return strings.ReplaceAll(p.Fragments[i].Text, "\n", " ")
}

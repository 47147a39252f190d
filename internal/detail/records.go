package detail

import (
	"regexp"
	"strings"

	"github.com/dgallion1/guidex/internal/layout"
	"github.com/dgallion1/guidex/internal/record"
)

var (
	issuedOn     = regexp.MustCompile(`^.*issued on (.*)`)
	speakerTitle = regexp.MustCompile(`^(.*): *(“.*)`)
	speakerName  = regexp.MustCompile(`^([^,]+),(.*): *(“.*)`)
)

type paragraph struct {
	name, title, text string
}

// Records emits one SourceDetail per narrative paragraph, in section order. A
// section without narrative still emits one record so that it is never lost.
func (r *Result) Records(reportName string) []record.SourceDetail {
	var out []record.SourceDetail
	for _, s := range r.Sections {
		base := record.SourceDetail{
			ReportName:   reportName,
			Category:     text(s.Category),
			Topic:        text(s.Topic),
			LineItem:     text(s.LineItem),
			FiscalPeriod: s.Period,
			Source:       s.source(),
			SourceType:   s.Marker.Trimmed(),
		}
		base.Amount, base.Info = amounts(s.Amounts)
		if s.Date != nil {
			if m := issuedOn.FindStringSubmatch(s.Date.Trimmed()); m != nil {
				base.LastIssueDatetime = m[1]
			}
		}

		paras := segment(s.Narrative())
		if len(paras) == 0 {
			out = append(out, base)
			continue
		}
		for _, p := range paras {
			rec := base
			rec.PersonName, rec.PersonTitle, rec.Text = p.name, p.title, p.text
			out = append(out, rec)
		}
	}
	return out
}

func (s *Section) source() string {
	if len(s.Citations) == 0 {
		return record.MissingSource
	}
	parts := make([]string, len(s.Citations))
	for i, c := range s.Citations {
		parts[i] = c.Trimmed()
	}
	return strings.Join(parts, " ")
}

// amounts derives GUID_AMT and GUID_INFO from an amount group. A three-line
// group prints the unit above the number.
func amounts(group []*layout.Fragment) (amount, info string) {
	switch len(group) {
	case 1, 2:
		amount = group[0].Trimmed()
	case 3:
		amount = group[1].Trimmed() + group[0].Trimmed()
	}
	if len(group) > 1 {
		info = group[len(group)-1].Trimmed()
	}
	return amount, info
}

// segment splits narrative fragments into speaker paragraphs. A highlighted
// fragment is a label that prefixes the next fragment.
func segment(frags []*layout.Fragment) []paragraph {
	var (
		paras   []paragraph
		pending string
	)
	for _, f := range frags {
		ct := f.Trimmed()
		if pending != "" {
			ct = pending + " " + ct
			pending = ""
		}
		switch {
		case speakerTitle.MatchString(ct):
			if m := speakerName.FindStringSubmatch(ct); m != nil {
				paras = append(paras, paragraph{name: strings.TrimSpace(m[1]), title: strings.TrimSpace(m[2]), text: m[3]})
			} else {
				m := speakerTitle.FindStringSubmatch(ct)
				paras = append(paras, paragraph{title: strings.TrimSpace(m[1]), text: m[2]})
			}
		case f.Tone == layout.Highlighted:
			pending = ct
		case len(paras) > 0:
			paras[len(paras)-1].text += " " + ct
		default:
			paras = append(paras, paragraph{text: ct})
		}
	}
	if pending != "" {
		paras = append(paras, paragraph{text: pending})
	}
	for i := range paras {
		paras[i].text = strings.TrimSpace(paras[i].text)
	}
	return paras
}

func text(f *layout.Fragment) string {
	if f == nil {
		return ""
	}
	return f.Trimmed()
}

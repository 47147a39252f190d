// Package report runs the full extraction of one guidance report: template
// classification, cover metadata, page partitioning, the summary and detail
// builders, and record assembly.
package report

import (
	"errors"
	"strings"

	"github.com/dgallion1/guidex/internal/detail"
	"github.com/dgallion1/guidex/internal/layout"
	"github.com/dgallion1/guidex/internal/record"
	"github.com/dgallion1/guidex/internal/summary"
	"github.com/dgallion1/guidex/internal/template"
)

// Diagnostic texts.
const (
	CheckUnreadable  = "File cannot be read"
	CheckInvalid     = "File is not a valid PDF"
	CheckUnsupported = "Unsupported report version"
	CheckNoSummary   = "No summary pages found"
	CheckNoReport    = "No report pages found"
)

// Result is everything extracted from one report.
type Result struct {
	ReportName    string                `json:"report_name"`
	Variant       template.Variant      `json:"variant,omitempty"`
	Metadata      template.Metadata     `json:"metadata"`
	Guidance      []record.Guidance     `json:"guidance"`
	SourceDetails []record.SourceDetail `json:"source_details"`
	Diagnostics   []record.Diagnostic   `json:"diagnostics"`

	// Intermediate builder structures, kept only when the reader retains them.
	Summary *summary.Table `json:"-"`
	Detail  *detail.Result `json:"-"`
}

// Failed reports whether the report hit a document-fatal condition.
func (r *Result) Failed() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == record.Fatal {
			return true
		}
	}
	return false
}

func (r *Result) diagnose(sev record.Severity, checks ...string) {
	for _, c := range checks {
		r.Diagnostics = append(r.Diagnostics, record.Diagnostic{ReportName: r.ReportName, Check: c, Severity: sev})
	}
}

// Reader extracts records from fragment documents. A Reader holds no
// per-document state and may be shared by concurrent workers.
type Reader struct {
	Templates template.Table
	// Retain keeps the summary and detail intermediates on the result.
	Retain bool
}

// NewReader returns a Reader over the given constants table.
func NewReader(t template.Table, retain bool) *Reader {
	return &Reader{Templates: t, Retain: retain}
}

// Fatal builds the result of a report that could not be processed. err is
// classified into one of the document-fatal diagnostics.
func Fatal(name string, err error) *Result {
	r := &Result{ReportName: name}
	switch {
	case errors.Is(err, layout.ErrUnreadable):
		r.diagnose(record.Fatal, CheckUnreadable)
	case errors.Is(err, template.ErrUnsupported):
		r.diagnose(record.Fatal, CheckUnsupported)
	default:
		r.diagnose(record.Fatal, CheckInvalid)
	}
	return r
}

// Read extracts one report. It never fails: document-fatal conditions and
// anomalies are reported as diagnostics on the result.
func (rd *Reader) Read(name string, doc *layout.Document) *Result {
	if doc == nil || len(doc.Pages) == 0 {
		return Fatal(name, layout.ErrInvalidDocument)
	}
	cover := doc.Pages[0]
	variant, c, err := rd.Templates.Classify(cover)
	if err != nil {
		return Fatal(name, err)
	}
	doc.Classify(c.Highlight)

	res := &Result{ReportName: name, Variant: variant, Metadata: c.ExtractMetadata(cover)}

	var body []*layout.Page
	if len(doc.Pages) > 2 {
		body = doc.Pages[1 : len(doc.Pages)-1]
	}
	summaryPages, reportPages := Partition(c, res.Metadata, body)
	if len(summaryPages) == 0 {
		res.diagnose(record.Anomaly, CheckNoSummary)
	}
	if len(reportPages) == 0 {
		res.diagnose(record.Anomaly, CheckNoReport)
	}

	var (
		tbl     *summary.Table
		periods []string
	)
	if len(summaryPages) > 0 {
		var err error
		tbl, err = summary.Build(c, summaryPages)
		if err != nil {
			res.diagnose(record.Anomaly, checks(err)...)
		} else {
			res.Guidance = record.Dedupe(tbl.Records(c, name, res.Metadata))
		}
		for _, col := range tbl.Columns {
			periods = append(periods, col.Title)
		}
	}

	var det *detail.Result
	if len(reportPages) > 0 {
		det = detail.Build(c, reportPages, periods)
		res.diagnose(record.Anomaly, det.Checks...)
		res.SourceDetails = record.Dedupe(det.Records(name))
	}

	if rd.Retain {
		res.Summary, res.Detail = tbl, det
	}
	return res
}

// Partition splits body pages at the first page (after the first) whose
// period-report title sits at the variant's title position.
func Partition(c template.Constants, meta template.Metadata, body []*layout.Page) (summaryPages, reportPages []*layout.Page) {
	title := "Period Report"
	if meta.CompanyAbbr != "" {
		title = meta.CompanyAbbr + " Period Report"
	}
	if c.Cover.ReportFold {
		title = strings.ToLower(title)
	}
	for pn := 1; pn < len(body); pn++ {
		bs := layout.SortTopDown(c.Body(body[pn]))
		i := c.Cover.ReportIndex
		if i >= len(bs) {
			continue
		}
		f := bs[i]
		if c.Cover.ReportBlock && !f.IsBlock() {
			continue
		}
		text := f.Text
		if c.Cover.ReportFold {
			text = strings.ToLower(text)
		}
		if strings.Contains(text, title) {
			return body[:pn], body[pn:]
		}
	}
	return nil, nil
}

// checks turns a (possibly joined) stage error into diagnostic texts.
func checks(err error) []string {
	var errs []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	} else {
		errs = []error{err}
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if msg != "" {
			msg = strings.ToUpper(msg[:1]) + msg[1:]
		}
		out = append(out, msg)
	}
	return out
}

// KeyItems condenses the records whose line item contains one of keys. Keys
// are matched in order, so a record matching several keys appears once per key.
func (r *Result) KeyItems(keys []string) []record.KeyItem {
	var out []record.KeyItem
	for _, k := range keys {
		for _, s := range r.SourceDetails {
			if strings.Contains(s.LineItem, k) {
				out = append(out, record.KeyItem{
					CompanyName:  r.Metadata.CompanyName,
					FiscalPeriod: s.FiscalPeriod,
					LineItem:     s.LineItem,
					Amount:       s.Amount,
					IssueDate:    s.LastIssueDatetime,
				})
			}
		}
		for _, g := range r.Guidance {
			if strings.Contains(g.LineItem, k) {
				out = append(out, record.KeyItem{
					CompanyName:  g.CompanyName,
					FiscalPeriod: g.FiscalPeriod,
					LineItem:     g.LineItem,
					Amount:       g.Amount,
					IssueDate:    g.IssueDate,
				})
			}
		}
	}
	return out
}

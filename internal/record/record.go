// Package record defines the flattened output rows produced for each report.
package record

// Guidance is one resolved cell of the summary table.
type Guidance struct {
	ReportName   string `json:"REPORT_NAME" db:"report_name"`
	CompanyName  string `json:"COMPANY_NAME" db:"company_name"`
	FiscalYear   string `json:"FISCAL_YEAR" db:"fiscal_year"`
	ReportDate   string `json:"REPORT_DATE_GENERATED" db:"report_date_generated"`
	Category     string `json:"GUIDANCE_LEVEL" db:"guidance_level"`
	Topic        string `json:"GUIDANCE_TOPIC" db:"guidance_topic"`
	CombinedItem string `json:"GUIDANCE_COMBINED_ITEM" db:"guidance_combined_item"`
	LineItem     string `json:"GUIDANCE_LINE_ITEM" db:"guidance_line_item"`
	Info         string `json:"GUID_INFO" db:"guid_info"`
	FiscalPeriod string `json:"GUID_FISCAL_PERIOD" db:"guid_fiscal_period"`
	IssueDate    string `json:"GUID_ISSUE_DATE" db:"guid_issue_date"`
	Amount       string `json:"GUID_AMT" db:"guid_amt"`
}

// GuidanceColumns is the export column order of Guidance.
var GuidanceColumns = []string{
	"REPORT_NAME",
	"COMPANY_NAME",
	"FISCAL_YEAR",
	"REPORT_DATE_GENERATED",
	"GUIDANCE_LEVEL",
	"GUIDANCE_TOPIC",
	"GUIDANCE_COMBINED_ITEM",
	"GUIDANCE_LINE_ITEM",
	"GUID_INFO",
	"GUID_FISCAL_PERIOD",
	"GUID_ISSUE_DATE",
	"GUID_AMT",
}

// Values returns the record fields in GuidanceColumns order.
func (g Guidance) Values() []string {
	return []string{
		g.ReportName, g.CompanyName, g.FiscalYear, g.ReportDate,
		g.Category, g.Topic, g.CombinedItem, g.LineItem, g.Info,
		g.FiscalPeriod, g.IssueDate, g.Amount,
	}
}

// SourceDetail is one narrative paragraph of a detail section.
type SourceDetail struct {
	ReportName        string `json:"REPORT_NAME" db:"report_name"`
	Category          string `json:"GUIDANCE_LEVEL" db:"guidance_level"`
	Topic             string `json:"GUIDANCE_TOPIC" db:"guidance_topic"`
	LineItem          string `json:"GUIDANCE_LINE_ITEM" db:"guidance_line_item"`
	FiscalPeriod      string `json:"GUID_FISCAL_PERIOD" db:"guid_fiscal_period"`
	Amount            string `json:"GUID_AMT" db:"guid_amt"`
	Info              string `json:"GUID_INFO" db:"guid_info"`
	LastIssueDatetime string `json:"LAST_ISSUE_DATETIME" db:"last_issue_datetime"`
	Source            string `json:"SOURCE" db:"source"`
	SourceType        string `json:"SOURCE_TYPE" db:"source_type"`
	PersonName        string `json:"SOURCE_PERSON_NAME" db:"source_person_name"`
	PersonTitle       string `json:"SOURCE_PERSON_TITLE" db:"source_person_title"`
	Text              string `json:"TEXT" db:"text"`
}

// SourceDetailColumns is the export column order of SourceDetail. The
// SEQUENCE_ID column is assigned by the exporter.
var SourceDetailColumns = []string{
	"REPORT_NAME",
	"GUIDANCE_LEVEL",
	"GUIDANCE_TOPIC",
	"GUIDANCE_LINE_ITEM",
	"GUID_FISCAL_PERIOD",
	"GUID_AMT",
	"GUID_INFO",
	"SEQUENCE_ID",
	"LAST_ISSUE_DATETIME",
	"SOURCE",
	"SOURCE_TYPE",
	"SOURCE_PERSON_NAME",
	"SOURCE_PERSON_TITLE",
	"TEXT",
}

// Values returns the record fields in SourceDetailColumns order, with seq in
// the SEQUENCE_ID position.
func (s SourceDetail) Values(seq string) []string {
	return []string{
		s.ReportName, s.Category, s.Topic, s.LineItem, s.FiscalPeriod,
		s.Amount, s.Info, seq, s.LastIssueDatetime, s.Source, s.SourceType,
		s.PersonName, s.PersonTitle, s.Text,
	}
}

// MissingSource replaces the SOURCE field when a section's citation
// fragments cannot be found.
const MissingSource = "ERROR"

// Severity separates document-fatal failures from recoverable anomalies.
type Severity string

const (
	Fatal   Severity = "fatal"
	Anomaly Severity = "anomaly"
)

// Diagnostic is a condition recorded against one report.
type Diagnostic struct {
	ReportName string   `json:"REPORT_NAME" db:"report_name"`
	Check      string   `json:"CHECK" db:"check_text"`
	Severity   Severity `json:"SEVERITY" db:"severity"`
}

// DiagnosticColumns is the export column order of Diagnostic.
var DiagnosticColumns = []string{"REPORT_NAME", "CHECK"}

// Values returns the record fields in DiagnosticColumns order.
func (d Diagnostic) Values() []string {
	return []string{d.ReportName, d.Check}
}

// Dedupe drops repeated records, keeping the first occurrence of each.
func Dedupe[T comparable](in []T) []T {
	if len(in) == 0 {
		return in
	}
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, r := range in {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// KeyItem is the condensed view of a guidance or source-detail record used
// for the key line-item extract.
type KeyItem struct {
	CompanyName  string `json:"COMPANY_NAME"`
	FiscalPeriod string `json:"GUID_FISCAL_PERIOD"`
	LineItem     string `json:"GUIDANCE_LINE_ITEM"`
	Amount       string `json:"GUID_AMT"`
	IssueDate    string `json:"GUID_ISSUE_DATE"`
}

// KeyItemColumns is the export column order of KeyItem.
var KeyItemColumns = []string{"COMPANY_NAME", "GUID_FISCAL_PERIOD", "GUIDANCE_LINE_ITEM", "GUID_AMT", "GUID_ISSUE_DATE"}

// Values returns the record fields in KeyItemColumns order.
func (k KeyItem) Values() []string {
	return []string{k.CompanyName, k.FiscalPeriod, k.LineItem, k.Amount, k.IssueDate}
}

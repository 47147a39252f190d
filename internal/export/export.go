// Package export writes batch results as the guidance datasheet workbooks,
// the diagnostics log, and CSV equivalents.
package export

import (
	"strings"

	"github.com/dgallion1/guidex/internal/record"
	"github.com/dgallion1/guidex/internal/report"
)

// Sheet and file names of the datasheet layout.
const (
	HeaderSheet = "GUIDANCE_HEADER"
	SourceSheet = "GUIDANCE_SOURCE_DETAIL"
	LogFile     = "log"
	KeyFile     = "key_guidance"
)

// Initials are the report name prefixes that get their own datasheet.
const Initials = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Batch is the concatenation of many report results.
type Batch struct {
	Guidance      []record.Guidance
	SourceDetails []record.SourceDetail
	Diagnostics   []record.Diagnostic
	KeyItems      []record.KeyItem
}

// Collect concatenates results in order. keys selects the key line items;
// nil skips the key extract.
func Collect(results []*report.Result, keys []string) Batch {
	var b Batch
	for _, r := range results {
		b.Guidance = append(b.Guidance, r.Guidance...)
		b.SourceDetails = append(b.SourceDetails, r.SourceDetails...)
		b.Diagnostics = append(b.Diagnostics, r.Diagnostics...)
		if len(keys) > 0 {
			b.KeyItems = append(b.KeyItems, r.KeyItems(keys)...)
		}
	}
	return b
}

// Empty reports whether the batch has nothing to export.
func (b Batch) Empty() bool {
	return len(b.Guidance) == 0 && len(b.SourceDetails) == 0 && len(b.Diagnostics) == 0
}

// Sheet is one datasheet: the records whose report name starts with Initial.
type Sheet struct {
	Initial       string
	Guidance      []record.Guidance
	SourceDetails []record.SourceDetail
}

// Sheets splits the batch by report name initial. Initials without records
// are skipped, and records are deduplicated within each sheet.
func (b Batch) Sheets() []Sheet {
	var out []Sheet
	for _, c := range Initials {
		prefix := string(c)
		s := Sheet{Initial: prefix}
		for _, g := range b.Guidance {
			if strings.HasPrefix(g.ReportName, prefix) {
				s.Guidance = append(s.Guidance, g)
			}
		}
		for _, d := range b.SourceDetails {
			if strings.HasPrefix(d.ReportName, prefix) {
				s.SourceDetails = append(s.SourceDetails, d)
			}
		}
		if len(s.Guidance) == 0 && len(s.SourceDetails) == 0 {
			continue
		}
		s.Guidance = record.Dedupe(s.Guidance)
		s.SourceDetails = record.Dedupe(s.SourceDetails)
		out = append(out, s)
	}
	return out
}

// Name is the datasheet file name without extension.
func (s Sheet) Name() string {
	return "Guidance_DataSheet_" + s.Initial
}

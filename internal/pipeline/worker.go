package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/guidex/internal/parser"
	"github.com/dgallion1/guidex/internal/report"
)

// Saver persists a finished extraction.
type Saver interface {
	SaveResult(ctx context.Context, res *report.Result, contentHash string) error
}

// ReportName derives the REPORT_NAME of an input file: its base name with
// the "Guidance Summary " prefix removed.
func ReportName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	stem := strings.Replace(strings.TrimSuffix(base, ext), "Guidance Summary ", "", 1)
	return stem + ext
}

// Extractor parses input files and runs the report reader on them.
type Extractor struct {
	Reader *report.Reader
	Parse  parser.Options
}

// Extract turns one input file into a result. Parse failures become a
// document-fatal diagnostic.
func (e *Extractor) Extract(filename string, r io.Reader) *report.Result {
	name := ReportName(filename)
	p, err := parser.ForFile(filename, e.Parse)
	if err != nil {
		return report.Fatal(name, err)
	}
	doc, err := p.Parse(r, filename)
	if err != nil {
		return report.Fatal(name, err)
	}
	return e.Reader.Read(name, doc)
}

// Worker processes a single report job.
type Worker struct {
	extractor *Extractor
	saver     Saver
	stats     *Stats
	log       *slog.Logger
}

// NewWorker creates a worker. saver may be nil when results are not persisted.
func NewWorker(ex *Extractor, saver Saver, stats *Stats, log *slog.Logger) *Worker {
	return &Worker{
		extractor: ex,
		saver:     saver,
		stats:     stats,
		log:       log,
	}
}

// Process runs the full extraction pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "report", job.ReportName)
	start := time.Now()

	job.SetStatus(StatusParsing, "parsing")
	if _, err := parser.ForFile(job.Filename, w.extractor.Parse); err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	job.SetStatus(StatusExtracting, "extracting")
	res := w.extractor.Extract(job.Filename, bytes.NewReader(job.FileData()))
	if w.stats != nil {
		w.stats.Record(time.Since(start).Milliseconds())
	}
	job.SetResult(res)
	log.Info("extraction complete",
		"variant", res.Variant,
		"guidance", len(res.Guidance),
		"source_details", len(res.SourceDetails),
		"diagnostics", len(res.Diagnostics),
	)

	if res.Failed() {
		for _, d := range res.Diagnostics {
			job.AddError(d.Check)
		}
		log.Warn("report rejected", "check", res.Diagnostics[0].Check)
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	if w.saver != nil {
		job.SetStatus(StatusStoring, "storing")
		if err := w.saver.SaveResult(ctx, res, job.ContentHash); err != nil {
			log.Error("store failed", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
			job.SetStatus(StatusPartial, "done")
			return
		}
	}

	if len(res.Diagnostics) > 0 {
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}

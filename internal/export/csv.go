package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dgallion1/guidex/internal/record"
)

// BOM is the UTF-8 byte order mark written ahead of CSV files so Excel on
// Windows detects the encoding.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer wraps csv.Writer for exporting records.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes the BOM and then CSV to w.
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := w.Write(BOM); err != nil {
		return nil, err
	}
	return &Writer{csv: csv.NewWriter(w)}, nil
}

// WriteGuidance writes the header row and one row per record.
func (w *Writer) WriteGuidance(recs []record.Guidance) error {
	if err := w.csv.Write(record.GuidanceColumns); err != nil {
		return err
	}
	for _, r := range recs {
		if err := w.csv.Write(r.Values()); err != nil {
			return err
		}
	}
	return w.flush()
}

// WriteSourceDetails writes the header row and one row per record, numbering
// SEQUENCE_ID from 1.
func (w *Writer) WriteSourceDetails(recs []record.SourceDetail) error {
	if err := w.csv.Write(record.SourceDetailColumns); err != nil {
		return err
	}
	for i, r := range recs {
		if err := w.csv.Write(r.Values(strconv.Itoa(i + 1))); err != nil {
			return err
		}
	}
	return w.flush()
}

// WriteDiagnostics writes the diagnostics log.
func (w *Writer) WriteDiagnostics(diags []record.Diagnostic) error {
	if err := w.csv.Write(record.DiagnosticColumns); err != nil {
		return err
	}
	for _, d := range diags {
		if err := w.csv.Write(d.Values()); err != nil {
			return err
		}
	}
	return w.flush()
}

// WriteKeyItems writes the key line-item extract.
func (w *Writer) WriteKeyItems(items []record.KeyItem) error {
	if err := w.csv.Write(record.KeyItemColumns); err != nil {
		return err
	}
	for _, k := range items {
		if err := w.csv.Write(k.Values()); err != nil {
			return err
		}
	}
	return w.flush()
}

func (w *Writer) flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// WriteCSV writes one CSV pair per datasheet, the diagnostics log and, when
// present, the key extract into dir. It returns the written paths.
func WriteCSV(dir string, b Batch) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var paths []string
	write := func(name string, fn func(*Writer) error) error {
		path := filepath.Join(dir, name+".csv")
		if err := writeFile(path, fn); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
		return nil
	}

	if err := write(LogFile, func(w *Writer) error { return w.WriteDiagnostics(b.Diagnostics) }); err != nil {
		return paths, err
	}
	for _, s := range b.Sheets() {
		if err := write(s.Name()+"_"+HeaderSheet, func(w *Writer) error { return w.WriteGuidance(s.Guidance) }); err != nil {
			return paths, err
		}
		if err := write(s.Name()+"_"+SourceSheet, func(w *Writer) error { return w.WriteSourceDetails(s.SourceDetails) }); err != nil {
			return paths, err
		}
	}
	if len(b.KeyItems) > 0 {
		if err := write(KeyFile, func(w *Writer) error { return w.WriteKeyItems(b.KeyItems) }); err != nil {
			return paths, err
		}
	}
	return paths, nil
}

func writeFile(path string, fn func(*Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w, err := NewWriter(f)
	if err != nil {
		return err
	}
	return fn(w)
}

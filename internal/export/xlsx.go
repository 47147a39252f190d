package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/guidex/internal/record"
)

// WriteWorkbooks writes log.xlsx and one Guidance_DataSheet_<C>.xlsx per
// report name initial into dir. It returns the written paths.
func WriteWorkbooks(dir string, b Batch) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var paths []string

	logPath := filepath.Join(dir, LogFile+".xlsx")
	err := writeWorkbook(logPath, []sheetRows{{name: "Sheet1", header: record.DiagnosticColumns, rows: diagnosticRows(b.Diagnostics)}})
	if err != nil {
		return paths, err
	}
	paths = append(paths, logPath)

	for _, s := range b.Sheets() {
		path := filepath.Join(dir, s.Name()+".xlsx")
		err := writeWorkbook(path, []sheetRows{
			{name: HeaderSheet, header: record.GuidanceColumns, rows: guidanceRows(s.Guidance)},
			{name: SourceSheet, header: record.SourceDetailColumns, rows: sourceRows(s.SourceDetails)},
		})
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

type sheetRows struct {
	name   string
	header []string
	rows   [][]any
}

func writeWorkbook(path string, sheets []sheetRows) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("%s: rename sheet: %w", path, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("%s: new sheet %s: %w", path, s.name, err)
		}
		if err := streamRows(f, s); err != nil {
			return fmt.Errorf("%s: sheet %s: %w", path, s.name, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func streamRows(f *excelize.File, s sheetRows) error {
	sw, err := f.NewStreamWriter(s.name)
	if err != nil {
		return err
	}
	header := make([]any, len(s.header))
	for i, h := range s.header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func anys(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func guidanceRows(recs []record.Guidance) [][]any {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = anys(r.Values())
	}
	return rows
}

// sourceRows numbers SEQUENCE_ID from 1 within the sheet.
func sourceRows(recs []record.SourceDetail) [][]any {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		row := anys(r.Values(""))
		row[seqColumn] = i + 1
		rows[i] = row
	}
	return rows
}

func diagnosticRows(diags []record.Diagnostic) [][]any {
	rows := make([][]any, len(diags))
	for i, d := range diags {
		rows[i] = anys(d.Values())
	}
	return rows
}

var seqColumn = func() int {
	for i, c := range record.SourceDetailColumns {
		if c == "SEQUENCE_ID" {
			return i
		}
	}
	panic("export: SEQUENCE_ID column missing")
}()

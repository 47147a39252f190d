// Package store persists extraction results in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dgallion1/guidex/internal/record"
	"github.com/dgallion1/guidex/internal/report"
)

// ErrNotFound is returned when a report has not been stored.
var ErrNotFound = errors.New("report not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id                    TEXT PRIMARY KEY,
	report_name           TEXT NOT NULL UNIQUE,
	content_hash          TEXT NOT NULL,
	variant               TEXT NOT NULL,
	company_name          TEXT NOT NULL,
	fiscal_year           TEXT NOT NULL,
	report_date_generated TEXT NOT NULL,
	processed_at          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_hash ON reports (content_hash);

CREATE TABLE IF NOT EXISTS guidance (
	report_id              TEXT NOT NULL REFERENCES reports (id) ON DELETE CASCADE,
	seq                    INTEGER NOT NULL,
	report_name            TEXT NOT NULL,
	company_name           TEXT NOT NULL,
	fiscal_year            TEXT NOT NULL,
	report_date_generated  TEXT NOT NULL,
	guidance_level         TEXT NOT NULL,
	guidance_topic         TEXT NOT NULL,
	guidance_combined_item TEXT NOT NULL,
	guidance_line_item     TEXT NOT NULL,
	guid_info              TEXT NOT NULL,
	guid_fiscal_period     TEXT NOT NULL,
	guid_issue_date        TEXT NOT NULL,
	guid_amt               TEXT NOT NULL,
	PRIMARY KEY (report_id, seq)
);

CREATE TABLE IF NOT EXISTS source_details (
	report_id           TEXT NOT NULL REFERENCES reports (id) ON DELETE CASCADE,
	seq                 INTEGER NOT NULL,
	report_name         TEXT NOT NULL,
	guidance_level      TEXT NOT NULL,
	guidance_topic      TEXT NOT NULL,
	guidance_line_item  TEXT NOT NULL,
	guid_fiscal_period  TEXT NOT NULL,
	guid_amt            TEXT NOT NULL,
	guid_info           TEXT NOT NULL,
	last_issue_datetime TEXT NOT NULL,
	source              TEXT NOT NULL,
	source_type         TEXT NOT NULL,
	source_person_name  TEXT NOT NULL,
	source_person_title TEXT NOT NULL,
	text                TEXT NOT NULL,
	PRIMARY KEY (report_id, seq)
);

CREATE TABLE IF NOT EXISTS diagnostics (
	report_id   TEXT NOT NULL REFERENCES reports (id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	report_name TEXT NOT NULL,
	check_text  TEXT NOT NULL,
	severity    TEXT NOT NULL,
	PRIMARY KEY (report_id, seq)
);
`

// Report is one stored report row.
type Report struct {
	ID          string    `db:"id" json:"id"`
	ReportName  string    `db:"report_name" json:"report_name"`
	ContentHash string    `db:"content_hash" json:"content_hash"`
	Variant     string    `db:"variant" json:"variant"`
	CompanyName string    `db:"company_name" json:"company_name"`
	FiscalYear  string    `db:"fiscal_year" json:"fiscal_year"`
	ReportDate  string    `db:"report_date_generated" json:"report_date_generated"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}

// Store is a SQLite-backed result store.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// dsn adds the connection pragmas; every pooled connection gets them.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult stores a result, replacing any earlier result for the same
// report name.
func (s *Store) SaveResult(ctx context.Context, res *report.Result, contentHash string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.SaveResult begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM reports WHERE report_name = ?`, res.ReportName); err != nil {
		return fmt.Errorf("store.SaveResult delete: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("store.SaveResult id: %w", err)
	}
	rep := Report{
		ID:          id.String(),
		ReportName:  res.ReportName,
		ContentHash: contentHash,
		Variant:     string(res.Variant),
		CompanyName: res.Metadata.CompanyName,
		FiscalYear:  res.Metadata.FiscalYear,
		ReportDate:  res.Metadata.ReportDate,
		ProcessedAt: time.Now().UTC(),
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO reports
		(id, report_name, content_hash, variant, company_name, fiscal_year, report_date_generated, processed_at)
		VALUES (:id, :report_name, :content_hash, :variant, :company_name, :fiscal_year, :report_date_generated, :processed_at)`, rep)
	if err != nil {
		return fmt.Errorf("store.SaveResult report: %w", err)
	}

	for i, g := range res.Guidance {
		row := guidanceRow{ReportID: rep.ID, Seq: i, Guidance: g}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO guidance
			(report_id, seq, report_name, company_name, fiscal_year, report_date_generated, guidance_level,
			 guidance_topic, guidance_combined_item, guidance_line_item, guid_info, guid_fiscal_period,
			 guid_issue_date, guid_amt)
			VALUES (:report_id, :seq, :report_name, :company_name, :fiscal_year, :report_date_generated,
			 :guidance_level, :guidance_topic, :guidance_combined_item, :guidance_line_item, :guid_info,
			 :guid_fiscal_period, :guid_issue_date, :guid_amt)`, row); err != nil {
			return fmt.Errorf("store.SaveResult guidance: %w", err)
		}
	}
	for i, d := range res.SourceDetails {
		row := sourceRow{ReportID: rep.ID, Seq: i, SourceDetail: d}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO source_details
			(report_id, seq, report_name, guidance_level, guidance_topic, guidance_line_item,
			 guid_fiscal_period, guid_amt, guid_info, last_issue_datetime, source, source_type,
			 source_person_name, source_person_title, text)
			VALUES (:report_id, :seq, :report_name, :guidance_level, :guidance_topic, :guidance_line_item,
			 :guid_fiscal_period, :guid_amt, :guid_info, :last_issue_datetime, :source, :source_type,
			 :source_person_name, :source_person_title, :text)`, row); err != nil {
			return fmt.Errorf("store.SaveResult source detail: %w", err)
		}
	}
	for i, d := range res.Diagnostics {
		row := diagnosticRow{ReportID: rep.ID, Seq: i, Diagnostic: d}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO diagnostics
			(report_id, seq, report_name, check_text, severity)
			VALUES (:report_id, :seq, :report_name, :check_text, :severity)`, row); err != nil {
			return fmt.Errorf("store.SaveResult diagnostic: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store.SaveResult commit: %w", err)
	}
	return nil
}

type guidanceRow struct {
	ReportID string `db:"report_id"`
	Seq      int    `db:"seq"`
	record.Guidance
}

type sourceRow struct {
	ReportID string `db:"report_id"`
	Seq      int    `db:"seq"`
	record.SourceDetail
}

type diagnosticRow struct {
	ReportID string `db:"report_id"`
	Seq      int    `db:"seq"`
	record.Diagnostic
}

// GetReport returns the stored report row for a report name.
func (s *Store) GetReport(ctx context.Context, reportName string) (*Report, error) {
	var r Report
	err := s.db.GetContext(ctx, &r, `SELECT * FROM reports WHERE report_name = ?`, reportName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store.GetReport: %w", err)
	}
	return &r, nil
}

// FindByHash returns the report stored from identical file content.
func (s *Store) FindByHash(ctx context.Context, contentHash string) (*Report, error) {
	var r Report
	err := s.db.GetContext(ctx, &r, `SELECT * FROM reports WHERE content_hash = ? ORDER BY processed_at DESC LIMIT 1`, contentHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store.FindByHash: %w", err)
	}
	return &r, nil
}

// ListReports returns stored reports ordered by name.
func (s *Store) ListReports(ctx context.Context) ([]Report, error) {
	var out []Report
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM reports ORDER BY report_name`); err != nil {
		return nil, fmt.Errorf("store.ListReports: %w", err)
	}
	return out, nil
}

// Guidance returns a report's guidance records in extraction order.
func (s *Store) Guidance(ctx context.Context, reportName string) ([]record.Guidance, error) {
	var out []record.Guidance
	err := s.db.SelectContext(ctx, &out, `SELECT report_name, company_name, fiscal_year, report_date_generated,
		guidance_level, guidance_topic, guidance_combined_item, guidance_line_item, guid_info,
		guid_fiscal_period, guid_issue_date, guid_amt
		FROM guidance WHERE report_name = ? ORDER BY seq`, reportName)
	if err != nil {
		return nil, fmt.Errorf("store.Guidance: %w", err)
	}
	return out, nil
}

// SourceDetails returns a report's source-detail records in extraction order.
func (s *Store) SourceDetails(ctx context.Context, reportName string) ([]record.SourceDetail, error) {
	var out []record.SourceDetail
	err := s.db.SelectContext(ctx, &out, `SELECT report_name, guidance_level, guidance_topic, guidance_line_item,
		guid_fiscal_period, guid_amt, guid_info, last_issue_datetime, source, source_type,
		source_person_name, source_person_title, text
		FROM source_details WHERE report_name = ? ORDER BY seq`, reportName)
	if err != nil {
		return nil, fmt.Errorf("store.SourceDetails: %w", err)
	}
	return out, nil
}

// Diagnostics returns a report's diagnostics in extraction order.
func (s *Store) Diagnostics(ctx context.Context, reportName string) ([]record.Diagnostic, error) {
	var out []record.Diagnostic
	err := s.db.SelectContext(ctx, &out, `SELECT report_name, check_text, severity
		FROM diagnostics WHERE report_name = ? ORDER BY seq`, reportName)
	if err != nil {
		return nil, fmt.Errorf("store.Diagnostics: %w", err)
	}
	return out, nil
}

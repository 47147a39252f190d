package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/guidex/internal/store"
)

// handleListReports lists persisted reports.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		jsonError(w, "result store disabled", http.StatusServiceUnavailable)
		return
	}
	reps, err := s.reports.ListReports(r.Context())
	if err != nil {
		jsonError(w, "failed to list reports: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": nonNil(reps)})
}

// handleReportRecords returns the persisted records of one report.
func (s *Server) handleReportRecords(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		jsonError(w, "result store disabled", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	name := chi.URLParam(r, "reportName")

	if _, err := s.reports.GetReport(ctx, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "report not found", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := recordsResponse{ReportName: name}
	var err error
	if resp.Guidance, err = s.reports.Guidance(ctx, name); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if resp.SourceDetails, err = s.reports.SourceDetails(ctx, name); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if resp.Diagnostics, err = s.reports.Diagnostics(ctx, name); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp.Guidance = nonNil(resp.Guidance)
	resp.SourceDetails = nonNil(resp.SourceDetails)
	resp.Diagnostics = nonNil(resp.Diagnostics)
	writeJSON(w, http.StatusOK, resp)
}

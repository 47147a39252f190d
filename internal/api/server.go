package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/guidex/internal/config"
	"github.com/dgallion1/guidex/internal/pipeline"
	"github.com/dgallion1/guidex/internal/record"
	"github.com/dgallion1/guidex/internal/store"
	"github.com/dgallion1/guidex/internal/template"
)

// ReportStore reads persisted results.
type ReportStore interface {
	ListReports(ctx context.Context) ([]store.Report, error)
	GetReport(ctx context.Context, reportName string) (*store.Report, error)
	Guidance(ctx context.Context, reportName string) ([]record.Guidance, error)
	SourceDetails(ctx context.Context, reportName string) ([]record.SourceDetail, error)
	Diagnostics(ctx context.Context, reportName string) ([]record.Diagnostic, error)
}

// Server is the HTTP API server for guidex.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	reports      ReportStore
	templates    template.Table
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. reports may be nil when
// persistence is disabled.
func NewServer(orch *pipeline.Orchestrator, reports ReportStore, templates template.Table, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		reports:      reports,
		templates:    templates,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)
		r.Post("/api/extract/batch", s.handleBatchExtract)
		r.Get("/api/extract/{jobID}/status", s.handleExtractStatus)
		r.Get("/api/extract/{jobID}/records", s.handleExtractRecords)

		r.Get("/api/templates", s.handleTemplates)
		r.Get("/api/stats", s.handleStats)

		r.Get("/api/reports", s.handleListReports)
		r.Get("/api/reports/{reportName}/records", s.handleReportRecords)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/guidex/internal/api"
	"github.com/dgallion1/guidex/internal/config"
	"github.com/dgallion1/guidex/internal/parser"
	"github.com/dgallion1/guidex/internal/pipeline"
	"github.com/dgallion1/guidex/internal/report"
	"github.com/dgallion1/guidex/internal/store"
	"github.com/dgallion1/guidex/internal/template"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	templates, err := template.Load(cfg.TemplatesPath)
	if err != nil {
		log.Error("loading templates", "path", cfg.TemplatesPath, "error", err)
		os.Exit(1)
	}

	// Result store is optional.
	var (
		saver   pipeline.Saver
		reports api.ReportStore
		st      *store.Store
	)
	if cfg.DBPath != "" {
		st, err = store.Open(ctx, cfg.DBPath)
		if err != nil {
			log.Error("opening result store", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		saver, reports = st, st
	}

	// Initialize pipeline.
	ex := &pipeline.Extractor{
		Reader: report.NewReader(templates, cfg.RetainIntermediate),
		Parse:  parser.Options{Validate: cfg.PDFValidate},
	}
	orch := pipeline.NewOrchestrator(cfg, ex, saver, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, reports, templates, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if st != nil {
			st.Close()
		}
	}()

	log.Info("starting guidex", "port", cfg.Port, "workers", cfg.WorkerCount, "store", cfg.DBPath != "")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

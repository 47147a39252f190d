package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/guidex/internal/config"
	"github.com/dgallion1/guidex/internal/export"
	"github.com/dgallion1/guidex/internal/parser"
	"github.com/dgallion1/guidex/internal/pipeline"
	"github.com/dgallion1/guidex/internal/report"
	"github.com/dgallion1/guidex/internal/store"
	"github.com/dgallion1/guidex/internal/template"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "guidex",
		Short: "Guidance report extractor",
		Long: `Guidex reads guidance-summary PDF reports and produces the guidance
and source detail records they contain, plus a diagnostics log for
anything that could not be extracted cleanly.`,
		Version: version,
	}

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(layoutCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newExtractor(cmd *cobra.Command) (*pipeline.Extractor, error) {
	path, _ := cmd.Flags().GetString("templates")
	templates, err := template.Load(path)
	if err != nil {
		return nil, err
	}
	noValidate, _ := cmd.Flags().GetBool("no-validate")
	return &pipeline.Extractor{
		Reader: report.NewReader(templates, false),
		Parse:  parser.Options{Validate: !noValidate},
	}, nil
}

func addExtractorFlags(cmd *cobra.Command) {
	cmd.Flags().String("templates", "", "YAML file overriding the built-in report templates")
	cmd.Flags().Bool("no-validate", false, "Skip structural PDF validation")
	cmd.Flags().BoolP("verbose", "v", false, "Log every processed report")
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <dir>",
		Short: "Extract records from every report under a directory",
		Long: `Extract walks a directory for supported reports (.pdf, .json layout
dumps), extracts them concurrently and writes the combined output:

  log.xlsx / log.csv                      diagnostics for every report
  Guidance_DataSheet_<C>.xlsx             records grouped by name initial
  <Name>_GUIDANCE_HEADER.csv              guidance records (csv format)
  <Name>_GUIDANCE_SOURCE_DETAIL.csv       source detail records (csv format)
  key_guidance.csv                        key line items (csv format)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd)
			outDir, _ := cmd.Flags().GetString("out")
			format, _ := cmd.Flags().GetString("format")
			dbPath, _ := cmd.Flags().GetString("db")
			workers, _ := cmd.Flags().GetInt("workers")
			keysFlag, _ := cmd.Flags().GetString("keys")

			switch format {
			case "xlsx", "csv", "both":
			default:
				return fmt.Errorf("unknown format %q (want xlsx, csv or both)", format)
			}
			keys := config.DefaultKeyLineItems
			if keysFlag != "" {
				keys = config.SplitList(keysFlag)
			}

			ex, err := newExtractor(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			files, err := pipeline.Discover(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no supported reports found in %s", args[0])
			}
			log.Info("extracting", "dir", args[0], "files", len(files), "workers", workers)

			stats := pipeline.NewStats(0)
			results, err := pipeline.RunBatch(ctx, ex, files, workers, stats, log)
			if err != nil {
				return fmt.Errorf("extraction interrupted: %w", err)
			}

			if dbPath != "" {
				if err := saveResults(ctx, dbPath, files, results); err != nil {
					return err
				}
				log.Info("results stored", "db", dbPath)
			}

			batch := export.Collect(results, keys)
			var written []string
			if format == "xlsx" || format == "both" {
				paths, err := export.WriteWorkbooks(outDir, batch)
				if err != nil {
					return fmt.Errorf("writing workbooks: %w", err)
				}
				written = append(written, paths...)
			}
			if format == "csv" || format == "both" {
				paths, err := export.WriteCSV(outDir, batch)
				if err != nil {
					return fmt.Errorf("writing csv: %w", err)
				}
				written = append(written, paths...)
			}

			failed := 0
			for _, res := range results {
				if res.Failed() {
					failed++
				}
			}
			snap := stats.Snapshot()
			fmt.Printf("Reports:        %d (%d failed)\n", len(results), failed)
			fmt.Printf("Guidance:       %d\n", len(batch.Guidance))
			fmt.Printf("Source details: %d\n", len(batch.SourceDetails))
			fmt.Printf("Diagnostics:    %d\n", len(batch.Diagnostics))
			fmt.Printf("Per report:     p50 %.0fms, p95 %.0fms\n", snap.P50Ms, snap.P95Ms)
			for _, p := range written {
				fmt.Printf("  wrote %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "output", "Output directory")
	cmd.Flags().StringP("format", "f", "xlsx", "Output format: xlsx, csv or both")
	cmd.Flags().String("db", "", "SQLite database to store results in")
	cmd.Flags().IntP("workers", "w", 4, "Concurrent extraction workers")
	cmd.Flags().String("keys", "", "Comma-separated key line items (default: "+strings.Join(config.DefaultKeyLineItems, ", ")+")")
	addExtractorFlags(cmd)
	return cmd
}

func saveResults(ctx context.Context, dbPath string, files []string, results []*report.Result) error {
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	for i, res := range results {
		var hash string
		if data, err := os.ReadFile(files[i]); err == nil {
			hash = pipeline.ContentHashHex(data)
		}
		if err := st.SaveResult(ctx, res, hash); err != nil {
			return fmt.Errorf("storing %s: %w", res.ReportName, err)
		}
	}
	return nil
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Extract one report and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := newExtractor(cmd)
			if err != nil {
				return err
			}
			keysFlag, _ := cmd.Flags().GetString("keys")

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res := ex.Extract(args[0], f)
			out := map[string]any{"result": res}
			if keysFlag != "" {
				out["key_items"] = res.KeyItems(config.SplitList(keysFlag))
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().String("keys", "", "Comma-separated key line items to list")
	addExtractorFlags(cmd)
	return cmd
}

func layoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout <pdf> [output.json]",
		Short: "Dump the positioned text of a PDF as a layout JSON file",
		Long: `Layout writes the pages, figures and text fragments of a PDF in the
layout dump format. A dump can be edited and fed back to extract or
inspect in place of the PDF.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			noValidate, _ := cmd.Flags().GetBool("no-validate")
			p, err := parser.ForFile(args[0], parser.Options{Validate: !noValidate})
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			doc, err := p.Parse(f, filepath.Base(args[0]))
			if err != nil {
				return err
			}

			w := os.Stdout
			if len(args) == 2 {
				out, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer out.Close()
				w = out
			}
			return parser.WriteLayout(w, doc)
		},
	}
	cmd.Flags().Bool("no-validate", false, "Skip structural PDF validation")
	return cmd
}

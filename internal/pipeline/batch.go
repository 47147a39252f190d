package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/guidex/internal/layout"
	"github.com/dgallion1/guidex/internal/parser"
	"github.com/dgallion1/guidex/internal/report"
)

// Discover lists the supported input files under dir, sorted by path.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && parser.IsSupportedExtension(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// RunBatch extracts every file on a pool of workers. Results come back in
// input order; each document is processed with its own state.
func RunBatch(ctx context.Context, ex *Extractor, files []string, workers int, stats *Stats, log *slog.Logger) ([]*report.Result, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]*report.Result, len(files))
	idx := make(chan int)

	var wg sync.WaitGroup
	for range min(workers, max(len(files), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				start := time.Now()
				results[i] = extractFile(ex, files[i])
				if stats != nil {
					stats.Record(time.Since(start).Milliseconds())
				}
				log.Debug("report processed",
					"file", files[i],
					"guidance", len(results[i].Guidance),
					"source_details", len(results[i].SourceDetails),
					"diagnostics", len(results[i].Diagnostics),
				)
			}
		}()
	}

	var err error
feed:
	for i := range files {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case idx <- i:
		}
	}
	close(idx)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return results, nil
}

func extractFile(ex *Extractor, path string) *report.Result {
	f, err := os.Open(path)
	if err != nil {
		return report.Fatal(ReportName(path), fmt.Errorf("%w: %v", layout.ErrUnreadable, err))
	}
	defer f.Close()
	return ex.Extract(path, f)
}

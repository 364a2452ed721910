// Package scan drives the indexing pipeline: concurrent root walking, a
// bounded worker pool for per-file classification/metadata/thumbnails,
// batched index writes, and reconciliation of records for deleted files.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mediadex/internal/db"
	"mediadex/internal/media"
	"mediadex/internal/metrics"
)

// Prober yields a container creation time for a video file, or nil.
// Satisfied by media.Prober; fakes stand in during tests.
type Prober interface {
	CreationTime(ctx context.Context, path string) *time.Time
}

// Config holds scan tuning parameters.
type Config struct {
	Workers   int
	BatchSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Workers: 8, BatchSize: 500}
}

// Scanner walks the configured roots and reconciles the index with the
// filesystem. One Scanner run is one full scan.
type Scanner struct {
	store  *db.Store
	roots  []string
	thumbs *media.Thumbnailer
	prober Prober // nil when video probing is disabled
	cfg    Config
}

// New creates a Scanner.
func New(store *db.Store, roots []string, thumbs *media.Thumbnailer, prober Prober, cfg Config) *Scanner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 500
	}
	return &Scanner{store: store, roots: roots, thumbs: thumbs, prober: prober, cfg: cfg}
}

// result carries one worker's outcome back to the collector.
type result struct {
	row db.File
	ok  bool
}

// Run executes a full scan, reporting stages through tracker. It returns the
// summary persisted to scan history; per-file and per-batch failures are
// counted, logged, and survived — only orchestration-level failures abort.
func (s *Scanner) Run(ctx context.Context, tracker *Tracker) (db.ScanSummary, error) {
	start := time.Now()
	var sum db.ScanSummary

	tracker.MarkStart()

	entries, unreachable := Collect(ctx, s.roots, s.cfg.Workers)
	total := len(entries)
	tracker.MarkCollected(total)
	slog.Info("scan collected", "files", total, "unreachable_roots", len(unreachable))

	if total == 0 {
		tracker.MarkDone(time.Since(start))
		return sum, ctx.Err()
	}
	sum.FilesSeen = int64(total)

	// The observed-path set is the discovery set, not the success set: a
	// file that failed processing was still observed and must not be
	// reconciled away.
	seen := make([]string, 0, total)
	for _, e := range entries {
		seen = append(seen, e.Path)
	}

	// Fan out to the worker pool; the collector below is the only mutator
	// of the batch and counters.
	jobs := make(chan Entry)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				results <- s.processOne(ctx, e)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, e := range entries {
			select {
			case jobs <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	flush := func(batch []db.File) {
		if len(batch) == 0 {
			return
		}
		if err := s.store.UpsertBatch(ctx, batch); err != nil {
			// Best-effort persistence: the batch is dropped, but never
			// silently — the loss is logged, counted, and surfaced in the
			// scan history row.
			slog.Error("index batch upsert failed, dropping batch",
				"size", len(batch), "error", err)
			metrics.BatchesDropped.Inc()
			sum.BatchesDropped++
			return
		}
		sum.FilesIndexed += int64(len(batch))
		for _, f := range batch {
			metrics.FilesIndexed.WithLabelValues(f.Category).Inc()
		}
	}

	done := 0
	batch := make([]db.File, 0, s.cfg.BatchSize)
	for r := range results {
		done++
		tracker.MarkProcessed(done)
		if r.ok {
			batch = append(batch, r.row)
			if len(batch) >= s.cfg.BatchSize {
				flush(batch)
				batch = batch[:0]
			}
		}
	}
	flush(batch)

	if err := ctx.Err(); err != nil {
		return sum, err
	}

	// Reconciliation requires every configured root to have been walked:
	// with a root unmounted, its records would look missing and be deleted
	// incorrectly, so the pass is skipped entirely.
	if len(unreachable) > 0 {
		slog.Warn("skipping reconciliation: configured roots unreachable",
			"roots", unreachable)
	} else {
		removed, err := s.store.DeleteMissing(ctx, seen)
		if err != nil {
			return sum, fmt.Errorf("reconcile deleted files: %w", err)
		}
		sum.FilesRemoved = removed
		if removed > 0 {
			slog.Info("reconciled deleted files", "removed", removed)
		}
	}

	tracker.MarkDone(time.Since(start))
	return sum, nil
}

// processOne builds the index row for a single file. Failures never escape:
// any error or panic marks the file skipped and the scan moves on.
func (s *Scanner) processOne(ctx context.Context, e Entry) (res result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic processing file, skipping", "path", e.Path, "panic", r)
			res = result{}
		}
	}()

	ext := strings.ToLower(filepath.Ext(e.Name))
	cat := media.Classify(ext)

	rel, err := filepath.Rel(e.Root, e.Path)
	if err != nil {
		rel = e.Name
	}

	row := db.File{
		Path:       e.Path,
		FolderRoot: e.Root,
		RelPath:    rel,
		Name:       e.Name,
		Ext:        ext,
		Category:   string(cat),
		ScannedAt:  time.Now(),
	}

	// Tolerate files disappearing mid-scan: zero timestamps, empty size.
	row.MTime = time.Unix(0, 0)
	row.CTime = time.Unix(0, 0)
	if info, err := os.Stat(e.Path); err == nil {
		row.Size = info.Size()
		row.MTime = info.ModTime()
		row.CTime = changeTime(info)
	}

	switch cat {
	case media.CategoryImages:
		row.OrigTime = media.OriginalTime(e.Path)
	case media.CategoryVideo:
		if s.prober != nil {
			row.OrigTime = s.prober.CreationTime(ctx, e.Path)
		}
	}

	if cat == media.CategoryImages || cat == media.CategoryVideo {
		thumbRel := s.thumbs.RelPath(e.Root, rel)
		if s.thumbs.Ensure(ctx, e.Path, thumbRel, cat == media.CategoryVideo) {
			row.Thumbnail = &thumbRel
		} else {
			metrics.ThumbnailFailures.Inc()
		}
	}

	return result{row: row, ok: true}
}

package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediadex/internal/db"
	"mediadex/internal/metrics"
)

// ErrAlreadyRunning is returned when a scan is started while one is in
// progress. Overlapping scans are rejected, never queued or merged.
var ErrAlreadyRunning = errors.New("a scan is already in progress")

// Manager enforces the single-active-scan invariant and runs scans in the
// background. Safe for concurrent use; all mutable state lives in the
// Tracker.
type Manager struct {
	store   *db.Store
	scanner *Scanner
	tracker *Tracker
}

// NewManager creates a Manager with an idle tracker.
func NewManager(store *db.Store, scanner *Scanner) *Manager {
	return &Manager{
		store:   store,
		scanner: scanner,
		tracker: NewTracker(),
	}
}

// Tracker exposes the shared progress state for the HTTP layer.
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// Start launches an asynchronous scan, or returns ErrAlreadyRunning. The
// running flag is claimed atomically before this returns, so a concurrent
// second trigger always sees the conflict.
func (m *Manager) Start(parentCtx context.Context, triggeredBy string) error {
	if !m.tracker.TryBegin() {
		return ErrAlreadyRunning
	}

	startedAt := time.Now()
	scanID, err := m.store.InsertScanRecord(parentCtx, startedAt, triggeredBy)
	if err != nil {
		m.tracker.MarkError(err.Error())
		return err
	}

	go m.run(parentCtx, scanID, startedAt, triggeredBy)
	return nil
}

// run executes the scan and records the terminal outcome. This is the single
// place orchestration-level failures are caught: they become stage=error
// with running=false, never a crash.
func (m *Manager) run(ctx context.Context, scanID int64, startedAt time.Time, triggeredBy string) {
	slog.Info("scan started", "id", scanID, "triggered_by", triggeredBy)

	sum, err := m.scanner.Run(ctx, m.tracker)

	status := "completed"
	if err != nil {
		status = "failed"
		slog.Error("scan failed", "id", scanID, "error", err)
		m.tracker.MarkError(err.Error())
	} else {
		m.tracker.MarkFinished("Scan finished")
	}
	metrics.ScansTotal.WithLabelValues(status).Inc()

	// History write is best-effort; the tracker already carries the outcome.
	finCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.store.FinishScanRecord(finCtx, scanID, status, time.Now(), sum); err != nil {
		slog.Error("finalise scan record", "id", scanID, "error", err)
	}

	slog.Info("scan finished", "id", scanID, "status", status,
		"files_seen", sum.FilesSeen, "files_indexed", sum.FilesIndexed,
		"files_removed", sum.FilesRemoved, "duration", time.Since(startedAt))
}

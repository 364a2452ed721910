package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// ScanRecord is one row of scan audit history.
type ScanRecord struct {
	ID              int64      `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Status          string     `json:"status"`
	TriggeredBy     string     `json:"triggered_by"`
	FilesSeen       int64      `json:"files_seen"`
	FilesIndexed    int64      `json:"files_indexed"`
	FilesRemoved    int64      `json:"files_removed"`
	BatchesDropped  int64      `json:"batches_dropped"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

// ScanSummary carries the final counters written when a scan ends.
type ScanSummary struct {
	FilesSeen      int64
	FilesIndexed   int64
	FilesRemoved   int64
	BatchesDropped int64
}

// InsertScanRecord creates a 'running' scan_history row and returns its ID.
func (s *Store) InsertScanRecord(ctx context.Context, startedAt time.Time, triggeredBy string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_history (started_at, status, triggered_by)
		VALUES (?, 'running', ?)`,
		startedAt.Unix(), triggeredBy)
	if err != nil {
		return 0, fmt.Errorf("insert scan record: %w", err)
	}
	return res.LastInsertId()
}

// FinishScanRecord finalises a scan_history row with its terminal status and
// counters.
func (s *Store) FinishScanRecord(ctx context.Context, id int64, status string, finishedAt time.Time, sum ScanSummary) error {
	started, err := s.scanStartedAt(ctx, id)
	if err != nil {
		return err
	}
	duration := int64(finishedAt.Sub(started).Seconds())
	_, err = s.db.ExecContext(ctx, `
		UPDATE scan_history
		SET status = ?, finished_at = ?, duration_seconds = ?,
		    files_seen = ?, files_indexed = ?, files_removed = ?,
		    batches_dropped = ?
		WHERE id = ?`,
		status, finishedAt.Unix(), duration,
		sum.FilesSeen, sum.FilesIndexed, sum.FilesRemoved, sum.BatchesDropped,
		id)
	if err != nil {
		return fmt.Errorf("finish scan record %d: %w", id, err)
	}
	return nil
}

// LastCompletedScan returns the newest 'completed' scan, or nil when none.
func (s *Store) LastCompletedScan(ctx context.Context) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, status, triggered_by,
		       files_seen, files_indexed, files_removed, batches_dropped,
		       duration_seconds
		FROM scan_history
		WHERE status = 'completed'
		ORDER BY finished_at DESC
		LIMIT 1`)

	var rec ScanRecord
	var startedAt int64
	var finishedAt, duration sql.NullInt64
	err := row.Scan(&rec.ID, &startedAt, &finishedAt, &rec.Status,
		&rec.TriggeredBy, &rec.FilesSeen, &rec.FilesIndexed,
		&rec.FilesRemoved, &rec.BatchesDropped, &duration)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last completed scan: %w", err)
	}
	rec.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		rec.FinishedAt = &t
	}
	if duration.Valid {
		rec.DurationSeconds = &duration.Int64
	}
	return &rec, nil
}

// MarkStaleScansFailed marks scan_history rows still 'running' as 'failed'.
// Called once at startup in case a previous process crashed mid-scan.
func (s *Store) MarkStaleScansFailed(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scan_history
		SET status = 'failed', finished_at = ?
		WHERE status = 'running'`,
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark stale scans failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Warn("marked stale scans as failed", "count", n)
	}
	return nil
}

func (s *Store) scanStartedAt(ctx context.Context, id int64) (time.Time, error) {
	var startedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM scan_history WHERE id = ?`, id).Scan(&startedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("query scan %d: %w", id, err)
	}
	return time.Unix(startedAt, 0).UTC(), nil
}

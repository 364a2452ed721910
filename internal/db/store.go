package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// File is one indexed media file. Path is the globally unique key; a scan
// upserts the full row or leaves it untouched, never a partial write.
type File struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	FolderRoot  string     `json:"folder_root"`
	RelPath     string     `json:"rel_path"`
	Name        string     `json:"name"`
	Ext         string     `json:"ext"`
	Category    string     `json:"category"`
	ImageSubcat *string    `json:"image_subcat,omitempty"`
	Size        int64      `json:"size"`
	MTime       time.Time  `json:"mtime"`
	CTime       time.Time  `json:"ctime"`
	OrigTime    *time.Time `json:"orig_time,omitempty"`
	Thumbnail   *string    `json:"thumbnail,omitempty"`
	ScannedAt   time.Time  `json:"scanned_at"`
}

// ErrNotFound is returned by ByPath when no row matches.
var ErrNotFound = errors.New("file not indexed")

// Store is the query layer over the files table. Safe for concurrent use;
// the underlying pool is limited to a single writer connection (see Open).
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const fileColumns = `id, path, folder_root, rel_path, name, ext, category,
	image_subcat, size, mtime, ctime, orig_time, thumbnail, scanned_at`

// UpsertBatch inserts or replaces all rows in a single transaction, keyed by
// path. Every column is overwritten on conflict.
func (s *Store) UpsertBatch(ctx context.Context, files []File) error {
	if len(files) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files
			(path, folder_root, rel_path, name, ext, category, image_subcat,
			 size, mtime, ctime, orig_time, thumbnail, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			folder_root = excluded.folder_root,
			rel_path    = excluded.rel_path,
			name        = excluded.name,
			ext         = excluded.ext,
			category    = excluded.category,
			image_subcat = excluded.image_subcat,
			size        = excluded.size,
			mtime       = excluded.mtime,
			ctime       = excluded.ctime,
			orig_time   = excluded.orig_time,
			thumbnail   = excluded.thumbnail,
			scanned_at  = excluded.scanned_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		var origTime any
		if f.OrigTime != nil {
			origTime = f.OrigTime.Unix()
		}
		if _, err := stmt.ExecContext(ctx,
			f.Path, f.FolderRoot, f.RelPath, f.Name, f.Ext, f.Category,
			f.ImageSubcat, f.Size, f.MTime.Unix(), f.CTime.Unix(),
			origTime, f.Thumbnail, f.ScannedAt.Unix(),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

// DeleteMissing removes every indexed row whose path is not in seen, and
// returns how many were removed. A full-root re-walk is the caller's
// precondition: a partial observed set would delete untouched records. An
// empty observed set is a no-op, never a full wipe.
func (s *Store) DeleteMissing(ctx context.Context, seen []string) (int64, error) {
	if len(seen) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`CREATE TEMP TABLE IF NOT EXISTS seen_paths(path TEXT PRIMARY KEY)`); err != nil {
		return 0, fmt.Errorf("create temp table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_paths`); err != nil {
		return 0, fmt.Errorf("clear temp table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO seen_paths(path) VALUES (?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare seen insert: %w", err)
	}
	for _, p := range seen {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("insert seen path: %w", err)
		}
	}
	stmt.Close()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM files WHERE path NOT IN (SELECT path FROM seen_paths)`)
	if err != nil {
		return 0, fmt.Errorf("delete missing: %w", err)
	}
	removed, _ := res.RowsAffected()
	return removed, tx.Commit()
}

// orderColumns whitelists sort keys accepted by ByCategory. "orig_time"
// coalesces to mtime/ctime so files without capture metadata still sort
// into a sensible timeline.
var orderColumns = map[string]string{
	"orig_time": "COALESCE(orig_time, mtime, ctime)",
	"mtime":     "mtime",
	"ctime":     "ctime",
	"size":      "size",
	"name":      "name",
}

// ByCategory returns files in one category. orderBy outside the whitelist
// falls back to orig_time ordering. limit <= 0 means no limit.
func (s *Store) ByCategory(ctx context.Context, category, orderBy string, desc bool, limit int) ([]File, error) {
	col, ok := orderColumns[orderBy]
	if !ok {
		col = orderColumns["orig_time"]
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q := fmt.Sprintf(`SELECT %s FROM files WHERE category = ? ORDER BY %s %s`,
		fileColumns, col, dir)
	args := []any{category}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query category %q: %w", category, err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// Recent returns the newest images and videos by best-known capture time.
func (s *Store) Recent(ctx context.Context, limit int) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM files
		WHERE category IN ('images', 'video')
		ORDER BY COALESCE(orig_time, mtime, ctime) DESC
		LIMIT ?`, fileColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// ByPath returns the indexed row for path, or ErrNotFound.
func (s *Store) ByPath(ctx context.Context, path string) (*File, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM files WHERE path = ?`, fileColumns), path)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query path %q: %w", path, err)
	}
	return f, nil
}

// CategoryCounts returns the number of indexed files per category.
func (s *Store) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM files GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		counts[cat] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(r rowScanner) (*File, error) {
	var f File
	var subcat, thumb sql.NullString
	var mtime, ctime, scannedAt int64
	var origTime sql.NullInt64
	if err := r.Scan(
		&f.ID, &f.Path, &f.FolderRoot, &f.RelPath, &f.Name, &f.Ext,
		&f.Category, &subcat, &f.Size, &mtime, &ctime, &origTime,
		&thumb, &scannedAt,
	); err != nil {
		return nil, err
	}
	f.MTime = time.Unix(mtime, 0).UTC()
	f.CTime = time.Unix(ctime, 0).UTC()
	f.ScannedAt = time.Unix(scannedAt, 0).UTC()
	if subcat.Valid {
		f.ImageSubcat = &subcat.String
	}
	if thumb.Valid {
		f.Thumbnail = &thumb.String
	}
	if origTime.Valid {
		t := time.Unix(origTime.Int64, 0).UTC()
		f.OrigTime = &t
	}
	return &f, nil
}

func scanFiles(rows *sql.Rows) ([]File, error) {
	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

package db_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mediadex/internal/db"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.RunMigrations(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.NewStore(conn)
}

func testFile(path, category string, mtime time.Time) db.File {
	return db.File{
		Path:       path,
		FolderRoot: "/media",
		RelPath:    filepath.Base(path),
		Name:       filepath.Base(path),
		Ext:        filepath.Ext(path),
		Category:   category,
		Size:       100,
		MTime:      mtime,
		CTime:      mtime,
		ScannedAt:  time.Now(),
	}
}

func TestUpsertBatchAndByPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	orig := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
	thumb := "media_photos/a.jpg.jpg"
	f := testFile("/media/a.jpg", "images", time.Unix(1700000000, 0))
	f.OrigTime = &orig
	f.Thumbnail = &thumb

	if err := store.UpsertBatch(ctx, []db.File{f}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.ByPath(ctx, "/media/a.jpg")
	if err != nil {
		t.Fatalf("by path: %v", err)
	}
	if got.Category != "images" {
		t.Errorf("category = %q, want images", got.Category)
	}
	if got.OrigTime == nil || !got.OrigTime.Equal(orig) {
		t.Errorf("orig_time = %v, want %v", got.OrigTime, orig)
	}
	if got.Thumbnail == nil || *got.Thumbnail != thumb {
		t.Errorf("thumbnail = %v, want %q", got.Thumbnail, thumb)
	}
}

func TestUpsertReplacesAllFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := testFile("/media/a.jpg", "images", time.Unix(1700000000, 0))
	orig := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	f.OrigTime = &orig
	if err := store.UpsertBatch(ctx, []db.File{f}); err != nil {
		t.Fatal(err)
	}

	// Second observation: metadata gone, size changed.
	f.OrigTime = nil
	f.Size = 999
	if err := store.UpsertBatch(ctx, []db.File{f}); err != nil {
		t.Fatal(err)
	}

	got, err := store.ByPath(ctx, "/media/a.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.OrigTime != nil {
		t.Errorf("orig_time should be replaced with NULL, got %v", got.OrigTime)
	}
	if got.Size != 999 {
		t.Errorf("size = %d, want 999", got.Size)
	}
}

func TestByPathNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ByPath(context.Background(), "/media/missing.jpg")
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	files := []db.File{
		testFile("/media/a.jpg", "images", time.Unix(1, 0)),
		testFile("/media/b.jpg", "images", time.Unix(2, 0)),
		testFile("/media/c.txt", "text", time.Unix(3, 0)),
	}
	if err := store.UpsertBatch(ctx, files); err != nil {
		t.Fatal(err)
	}

	removed, err := store.DeleteMissing(ctx, []string{"/media/a.jpg", "/media/c.txt"})
	if err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := store.ByPath(ctx, "/media/b.jpg"); !errors.Is(err, db.ErrNotFound) {
		t.Error("b.jpg should have been reconciled away")
	}
	if _, err := store.ByPath(ctx, "/media/a.jpg"); err != nil {
		t.Errorf("a.jpg should survive: %v", err)
	}
}

func TestDeleteMissingEmptySetIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	files := []db.File{
		testFile("/media/a.jpg", "images", time.Unix(1, 0)),
		testFile("/media/b.jpg", "images", time.Unix(2, 0)),
	}
	if err := store.UpsertBatch(ctx, files); err != nil {
		t.Fatal(err)
	}

	// An empty observed set must never wipe the index.
	for _, seen := range [][]string{nil, {}} {
		removed, err := store.DeleteMissing(ctx, seen)
		if err != nil {
			t.Fatalf("delete missing: %v", err)
		}
		if removed != 0 {
			t.Errorf("removed = %d, want 0", removed)
		}
	}
	for _, p := range []string{"/media/a.jpg", "/media/b.jpg"} {
		if _, err := store.ByPath(ctx, p); err != nil {
			t.Errorf("%s lost to an empty reconciliation set: %v", p, err)
		}
	}
}

func TestRecentOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// old mtime but recent capture time — must sort first.
	withExif := testFile("/media/old-file-new-capture.jpg", "images", time.Unix(1000, 0))
	capture := time.Unix(5000, 0).UTC()
	withExif.OrigTime = &capture

	noExif := testFile("/media/new-file.mp4", "video", time.Unix(3000, 0))
	doc := testFile("/media/doc.pdf", "documents", time.Unix(9000, 0))

	if err := store.UpsertBatch(ctx, []db.File{withExif, noExif, doc}); err != nil {
		t.Fatal(err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d files, want 2 (documents excluded)", len(recent))
	}
	if recent[0].Path != "/media/old-file-new-capture.jpg" {
		t.Errorf("first recent = %s, want capture-time winner", recent[0].Path)
	}
}

func TestByCategoryOrderWhitelist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testFile("/media/a.jpg", "images", time.Unix(100, 0))
	a.Size = 10
	b := testFile("/media/b.jpg", "images", time.Unix(200, 0))
	b.Size = 20
	if err := store.UpsertBatch(ctx, []db.File{a, b}); err != nil {
		t.Fatal(err)
	}

	got, err := store.ByCategory(ctx, "images", "size", true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Size != 20 {
		t.Errorf("size desc ordering broken: %+v", got)
	}

	// Hostile order key falls back to the default, not into the SQL.
	if _, err := store.ByCategory(ctx, "images", "size; DROP TABLE files", true, 1); err != nil {
		t.Fatalf("whitelist fallback: %v", err)
	}
	if _, err := store.ByPath(ctx, "/media/a.jpg"); err != nil {
		t.Fatal("files table should still exist")
	}
}

func TestCategoryCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	files := []db.File{
		testFile("/media/a.jpg", "images", time.Unix(1, 0)),
		testFile("/media/b.jpg", "images", time.Unix(2, 0)),
		testFile("/media/c.mp3", "audio", time.Unix(3, 0)),
	}
	if err := store.UpsertBatch(ctx, files); err != nil {
		t.Fatal(err)
	}

	counts, err := store.CategoryCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["images"] != 2 || counts["audio"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestScanHistoryLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	id, err := store.InsertScanRecord(ctx, started, "manual")
	if err != nil {
		t.Fatalf("insert record: %v", err)
	}

	sum := db.ScanSummary{FilesSeen: 10, FilesIndexed: 9, FilesRemoved: 1}
	if err := store.FinishScanRecord(ctx, id, "completed", time.Now(), sum); err != nil {
		t.Fatalf("finish record: %v", err)
	}

	last, err := store.LastCompletedScan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.ID != id {
		t.Fatalf("last completed = %+v, want id %d", last, id)
	}
	if last.FilesSeen != 10 || last.FilesRemoved != 1 {
		t.Errorf("summary not persisted: %+v", last)
	}
	if last.DurationSeconds == nil || *last.DurationSeconds < 59 {
		t.Errorf("duration = %v, want >= 59s", last.DurationSeconds)
	}
}

func TestMarkStaleScansFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertScanRecord(ctx, time.Now(), "manual"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkStaleScansFailed(ctx); err != nil {
		t.Fatal(err)
	}
	last, err := store.LastCompletedScan(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last != nil {
		t.Errorf("stale scan must not count as completed: %+v", last)
	}
}

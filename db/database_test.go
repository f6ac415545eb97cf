package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docqa/document"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "docqa.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenCreatesDirectoryAndMigrates(t *testing.T) {
	d := openTestDB(t)

	if _, err := os.Stat(d.Path()); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	version, dirty, err := MigrationVersion(d.Path())
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 false", version, dirty)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.db")
	for i := 0; i < 2; i++ {
		d, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		d.Close()
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestClosedDatabase(t *testing.T) {
	d := openTestDB(t)
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := d.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() after close = %v, want ErrClosed", err)
	}
	if _, err := d.InsertExtraction(context.Background(), ExtractionRecord{}); !errors.Is(err, ErrClosed) {
		t.Errorf("InsertExtraction() after close = %v, want ErrClosed", err)
	}
}

func TestMigrateDown(t *testing.T) {
	d := openTestDB(t)
	d.Close()

	if err := MigrateDown(d.Path()); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	version, _, err := MigrationVersion(d.Path())
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("version after down = %d, want 0", version)
	}
}

func TestExtractionHistory(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	records := []ExtractionRecord{
		{CorrelationID: "aaa", SessionID: "s1", FileName: "a.pdf", Format: "pdf", Strategy: "structured",
			Source: "structured", ContentLength: 1200, Success: true, Duration: 250 * time.Millisecond, CreatedAt: base},
		{CorrelationID: "bbb", SessionID: "s1", FileName: "b.xlsx", ErrorCode: "UNSUPPORTED_FORMAT",
			ErrorMessage: "unsupported format", CreatedAt: base.Add(time.Minute)},
	}
	for _, rec := range records {
		id, err := d.InsertExtraction(ctx, rec)
		if err != nil {
			t.Fatalf("InsertExtraction() error = %v", err)
		}
		if id <= 0 {
			t.Errorf("id = %d, want positive", id)
		}
	}

	got, err := d.RecentExtractions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentExtractions() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].FileName != "b.xlsx" || got[1].FileName != "a.pdf" {
		t.Errorf("order = %s, %s; want newest first", got[0].FileName, got[1].FileName)
	}
	if got[0].Success || got[0].ErrorCode != "UNSUPPORTED_FORMAT" {
		t.Errorf("failure row = %+v", got[0])
	}
	if !got[1].Success || got[1].Duration != 250*time.Millisecond || got[1].ContentLength != 1200 {
		t.Errorf("success row = %+v", got[1])
	}

	limited, err := d.RecentExtractions(ctx, 1)
	if err != nil {
		t.Fatalf("RecentExtractions(1) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len = %d, want 1", len(limited))
	}
}

func TestExtractionCache(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if _, err := d.GetCachedExtraction(ctx, "h1", "pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("miss error = %v, want ErrNotFound", err)
	}

	first := document.NewExtractionResult("first text", document.SourceStructured, "structured", 3)
	if err := d.PutCachedExtraction(ctx, "h1", "pdf", first); err != nil {
		t.Fatalf("PutCachedExtraction() error = %v", err)
	}
	got, err := d.GetCachedExtraction(ctx, "h1", "pdf")
	if err != nil {
		t.Fatalf("GetCachedExtraction() error = %v", err)
	}
	if *got != *first {
		t.Errorf("got %+v, want %+v", got, first)
	}

	// same hash under another format is a separate entry
	if _, err := d.GetCachedExtraction(ctx, "h1", "txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other format error = %v, want ErrNotFound", err)
	}

	second := document.NewExtractionResult("second ≥ text", document.SourceOCR, "ocr", 1)
	if err := d.PutCachedExtraction(ctx, "h1", "pdf", second); err != nil {
		t.Fatalf("overwrite error = %v", err)
	}
	got, err = d.GetCachedExtraction(ctx, "h1", "pdf")
	if err != nil {
		t.Fatalf("GetCachedExtraction() error = %v", err)
	}
	if got.Text != "second ≥ text" || got.Source != document.SourceOCR || got.Length != 13 {
		t.Errorf("after overwrite got %+v", got)
	}

	if err := d.PutCachedExtraction(ctx, "h2", "pdf", nil); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestPurgeCacheOlderThan(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	res := document.NewExtractionResult("cached", document.SourceStructured, "docx", 0)

	if err := d.putCachedExtractionAt(ctx, "old", "docx", res, time.Now().Add(-48*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := d.PutCachedExtraction(ctx, "new", "docx", res); err != nil {
		t.Fatal(err)
	}

	n, err := d.PurgeCacheOlderThan(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeCacheOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if _, err := d.GetCachedExtraction(ctx, "old", "docx"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old entry still present: %v", err)
	}
	if _, err := d.GetCachedExtraction(ctx, "new", "docx"); err != nil {
		t.Errorf("new entry missing: %v", err)
	}

	if _, err := d.PurgeCacheOlderThan(ctx, -time.Second); err == nil {
		t.Error("expected error for negative age")
	}
}

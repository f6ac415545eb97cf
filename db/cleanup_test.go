package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docqa/document"
)

func TestCleanup(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	old := time.Now().Add(-10 * 24 * time.Hour)

	for _, at := range []time.Time{old, old, time.Now()} {
		if _, err := d.InsertExtraction(ctx, ExtractionRecord{CorrelationID: "c", FileName: "f.txt", CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
	}
	res := document.NewExtractionResult("text", document.SourceStructured, "txt", 0)
	if err := d.putCachedExtractionAt(ctx, "old", "txt", res, old); err != nil {
		t.Fatal(err)
	}

	result, err := d.Cleanup(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if result.HistoryDeleted != 2 || result.CacheDeleted != 1 {
		t.Errorf("result = %+v, want 2 history and 1 cache", result)
	}
	if result.TotalDeleted() != 3 {
		t.Errorf("TotalDeleted() = %d, want 3", result.TotalDeleted())
	}

	remaining, err := d.RecentExtractions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining history = %d, want 1", len(remaining))
	}

	if _, err := d.Cleanup(ctx, -time.Hour); err == nil {
		t.Error("expected error for negative retention")
	}
}

func TestCleanupScheduler(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	if _, err := d.InsertExtraction(ctx, ExtractionRecord{CorrelationID: "c", FileName: "f",
		CreatedAt: time.Now().Add(-48 * time.Hour)}); err != nil {
		t.Fatal(err)
	}

	s := NewCleanupScheduler(d, time.Hour, time.Hour, nil)
	s.Start()

	deadline := time.Now().Add(5 * time.Second)
	for {
		recs, err := d.RecentExtractions(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not run initial cleanup")
		}
		time.Sleep(20 * time.Millisecond)
	}
	s.Stop()
	s.Stop()
}

type recordingSink struct {
	mu   sync.Mutex
	recs []ExtractionRecord
	fail bool
}

func (s *recordingSink) InsertExtraction(_ context.Context, rec ExtractionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errors.New("sink failure")
	}
	s.recs = append(s.recs, rec)
	return int64(len(s.recs)), nil
}

func TestHistoryWriterDrainsOnStop(t *testing.T) {
	sink := &recordingSink{}
	w := NewHistoryWriter(sink, nil)
	w.Start()

	for i := 0; i < 20; i++ {
		if err := w.Record(ExtractionRecord{CorrelationID: "c", FileName: "f"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if !w.Stop() {
		t.Fatal("Stop() did not drain in time")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.recs) != 20 {
		t.Errorf("written = %d, want 20", len(sink.recs))
	}
	for _, rec := range sink.recs {
		if rec.CreatedAt.IsZero() {
			t.Error("CreatedAt not stamped")
			break
		}
	}
}

func TestHistoryWriterAfterStop(t *testing.T) {
	w := NewHistoryWriter(&recordingSink{}, nil)
	if !w.Stop() {
		t.Fatal("Stop() on unstarted writer = false")
	}
	if err := w.Record(ExtractionRecord{}); !errors.Is(err, ErrWriterStopped) {
		t.Errorf("Record() after Stop = %v, want ErrWriterStopped", err)
	}
	w.Start()
	if !w.Stop() {
		t.Error("second Stop() = false")
	}
}

func TestHistoryWriterSinkErrors(t *testing.T) {
	sink := &recordingSink{fail: true}
	w := NewHistoryWriter(sink, nil)
	w.Start()
	if err := w.Record(ExtractionRecord{CorrelationID: "x"}); err != nil {
		t.Fatal(err)
	}
	if !w.Stop() {
		t.Fatal("Stop() did not drain")
	}
}

func TestHistoryWriterWithDatabase(t *testing.T) {
	d := openTestDB(t)
	w := NewHistoryWriter(d, nil)
	w.Start()
	if err := w.Record(ExtractionRecord{CorrelationID: "abc", FileName: "a.txt", Success: true}); err != nil {
		t.Fatal(err)
	}
	w.Stop()

	recs, err := d.RecentExtractions(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].CorrelationID != "abc" {
		t.Errorf("records = %+v", recs)
	}
}

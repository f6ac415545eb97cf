package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"docqa/logging"
)

// CleanupResult reports one retention pass.
type CleanupResult struct {
	HistoryDeleted int64
	CacheDeleted   int64
	Duration       time.Duration
}

// TotalDeleted is the sum of removed rows.
func (r CleanupResult) TotalDeleted() int64 { return r.HistoryDeleted + r.CacheDeleted }

// Cleanup deletes history and cache rows older than retention in one
// transaction, then runs VACUUM.
func (d *Database) Cleanup(ctx context.Context, retention time.Duration) (CleanupResult, error) {
	start := time.Now()
	var result CleanupResult

	if retention < 0 {
		return result, fmt.Errorf("retention must be non-negative, got %s", retention)
	}

	conn, release, err := d.conn()
	if err != nil {
		return result, err
	}
	defer release()

	cutoff := time.Now().Add(-retention).Unix()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer tx.Rollback()

	targets := []struct {
		table string
		count *int64
	}{
		{"extraction_history", &result.HistoryDeleted},
		{"extraction_cache", &result.CacheDeleted},
	}
	for _, t := range targets {
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", t.table), cutoff)
		if err != nil {
			return result, fmt.Errorf("failed to clean %s: %w", t.table, err)
		}
		*t.count, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
		return result, fmt.Errorf("failed to vacuum database: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// CleanupScheduler runs Cleanup on an interval until stopped.
type CleanupScheduler struct {
	db        *Database
	retention time.Duration
	interval  time.Duration
	logger    *logging.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewCleanupScheduler returns a scheduler for db. Call Start to begin.
func NewCleanupScheduler(db *Database, retention, interval time.Duration, logger *logging.Logger) *CleanupScheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &CleanupScheduler{
		db:        db,
		retention: retention,
		interval:  interval,
		logger:    logger.Named("cleanup"),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval.
func (s *CleanupScheduler) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce()
		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *CleanupScheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

func (s *CleanupScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := s.db.Cleanup(ctx, s.retention)
	if err != nil {
		s.logger.Error("database cleanup failed", zap.Error(err))
		return
	}
	if res.TotalDeleted() > 0 {
		s.logger.Info("database cleanup complete",
			zap.Int64("history_deleted", res.HistoryDeleted),
			zap.Int64("cache_deleted", res.CacheDeleted),
			zap.Duration("duration", res.Duration))
	}
}

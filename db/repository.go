package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docqa/document"
)

// ErrNotFound is returned when a cache lookup misses.
var ErrNotFound = errors.New("db: record not found")

// ExtractionRecord is one history row: the outcome of processing a single
// file.
type ExtractionRecord struct {
	ID            int64
	CorrelationID string
	SessionID     string
	FileName      string
	Format        string
	Strategy      string
	Source        string
	ContentLength int
	Success       bool
	ErrorCode     string
	ErrorMessage  string
	Duration      time.Duration
	CreatedAt     time.Time
}

// InsertExtraction appends rec to the history and returns its row id. A
// zero CreatedAt is set to now.
func (d *Database) InsertExtraction(ctx context.Context, rec ExtractionRecord) (int64, error) {
	conn, release, err := d.conn()
	if err != nil {
		return 0, err
	}
	defer release()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	const query = `
		INSERT INTO extraction_history (
			correlation_id, session_id, file_name, format, strategy, source,
			content_length, success, error_code, error_message, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := conn.ExecContext(ctx, query,
		rec.CorrelationID, rec.SessionID, rec.FileName, rec.Format, rec.Strategy, rec.Source,
		rec.ContentLength, boolToInt(rec.Success), rec.ErrorCode, rec.ErrorMessage,
		rec.Duration.Milliseconds(), rec.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert extraction record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return id, nil
}

// RecentExtractions returns up to limit history rows, newest first.
func (d *Database) RecentExtractions(ctx context.Context, limit int) ([]ExtractionRecord, error) {
	conn, release, err := d.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, correlation_id, session_id, file_name, format, strategy, source,
			content_length, success, error_code, error_message, duration_ms, created_at
		FROM extraction_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query extraction history: %w", err)
	}
	defer rows.Close()

	var out []ExtractionRecord
	for rows.Next() {
		var (
			rec        ExtractionRecord
			success    int
			durationMs int64
			createdAt  int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.CorrelationID, &rec.SessionID, &rec.FileName, &rec.Format,
			&rec.Strategy, &rec.Source, &rec.ContentLength, &success, &rec.ErrorCode,
			&rec.ErrorMessage, &durationMs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan extraction record: %w", err)
		}
		rec.Success = success != 0
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate extraction history: %w", err)
	}
	return out, nil
}

// GetCachedExtraction returns the stored result for hash and format, or
// ErrNotFound.
func (d *Database) GetCachedExtraction(ctx context.Context, hash, format string) (*document.ExtractionResult, error) {
	conn, release, err := d.conn()
	if err != nil {
		return nil, err
	}
	defer release()

	const query = `
		SELECT text, source, strategy, pages
		FROM extraction_cache
		WHERE content_hash = ? AND format = ?`

	var (
		text, source, strategy string
		pages                  int
	)
	err = conn.QueryRowContext(ctx, query, hash, format).Scan(&text, &source, &strategy, &pages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached extraction: %w", err)
	}
	return document.NewExtractionResult(text, document.Source(source), strategy, pages), nil
}

// PutCachedExtraction stores res under hash and format, replacing any
// previous entry.
func (d *Database) PutCachedExtraction(ctx context.Context, hash, format string, res *document.ExtractionResult) error {
	return d.putCachedExtractionAt(ctx, hash, format, res, time.Now())
}

func (d *Database) putCachedExtractionAt(ctx context.Context, hash, format string, res *document.ExtractionResult, at time.Time) error {
	if res == nil {
		return fmt.Errorf("nil extraction result")
	}
	conn, release, err := d.conn()
	if err != nil {
		return err
	}
	defer release()

	const query = `
		INSERT INTO extraction_cache (content_hash, format, strategy, source, text, pages, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_hash, format) DO UPDATE SET
			strategy = excluded.strategy,
			source = excluded.source,
			text = excluded.text,
			pages = excluded.pages,
			created_at = excluded.created_at`

	if _, err := conn.ExecContext(ctx, query,
		hash, format, res.Strategy, string(res.Source), res.Text, res.Pages, at.Unix(),
	); err != nil {
		return fmt.Errorf("failed to store cached extraction: %w", err)
	}
	return nil
}

// PurgeCacheOlderThan deletes cache entries stored more than age ago and
// returns how many were removed.
func (d *Database) PurgeCacheOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age < 0 {
		return 0, fmt.Errorf("age must be non-negative, got %s", age)
	}
	conn, release, err := d.conn()
	if err != nil {
		return 0, err
	}
	defer release()

	cutoff := time.Now().Add(-age).Unix()
	res, err := conn.ExecContext(ctx, `DELETE FROM extraction_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge extraction cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

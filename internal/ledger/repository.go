package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit and MaxListLimit bound List queries.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// fixed-width so created_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is one published preview.
type Entry struct {
	ID          string
	SourceHash  string
	StartMs     *int64 // as requested; nil when omitted
	EndMs       *int64
	WindowStart float64 // resolved, seconds
	WindowEnd   float64
	ClipHash    string
	ClipBytes   int64
	CreatedAt   time.Time
}

// SQLiteRepository records conversions in the ledger database.
type SQLiteRepository struct {
	db *sql.DB
}

// Close releases the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Record inserts e, filling in ID and CreatedAt when unset.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversions (id, source_hash, start_ms, end_ms, window_start_s, window_end_s, clip_hash, clip_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SourceHash, nullInt64(e.StartMs), nullInt64(e.EndMs), e.WindowStart, e.WindowEnd,
		e.ClipHash, e.ClipBytes, e.CreatedAt.UTC().Format(timeLayout))
	return err
}

// List returns the most recent entries first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Entry, error) {
	limit = ClampLimit(limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_hash, start_ms, end_ms, window_start_s, window_end_s, clip_hash, clip_bytes, created_at
		FROM conversions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var startMs, endMs sql.NullInt64
		var createdAt string

		if err := rows.Scan(&e.ID, &e.SourceHash, &startMs, &endMs, &e.WindowStart, &e.WindowEnd,
			&e.ClipHash, &e.ClipBytes, &createdAt); err != nil {
			return nil, err
		}
		if startMs.Valid {
			e.StartMs = &startMs.Int64
		}
		if endMs.Valid {
			e.EndMs = &endMs.Int64
		}
		e.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ClampLimit maps a caller-supplied limit into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

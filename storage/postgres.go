// Package storage persists conversion bookkeeping in PostgreSQL. The
// bundles themselves live on static hosting; the database only records
// who converted what, when, and how it went.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Conversion states.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Conversion is one bookkeeping row.
type Conversion struct {
	ID           string
	Account      string
	Title        string
	Slug         string
	Status       string
	PageCount    int
	Words        int
	BundleBytes  int64
	BundleURL    string
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	FinishedAt   sql.NullTime
}

// ConversionLog wraps the connection pool.
type ConversionLog struct {
	db *sql.DB
}

// Open connects and verifies the database is reachable.
func Open(databaseURL string) (*ConversionLog, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &ConversionLog{db: db}, nil
}

func (l *ConversionLog) Close() error { return l.db.Close() }

// Ping reports whether the database is reachable, for health checks.
func (l *ConversionLog) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Migrate creates the conversions table when missing.
func (l *ConversionLog) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id            UUID PRIMARY KEY,
	account       TEXT NOT NULL,
	title         TEXT NOT NULL,
	slug          TEXT NOT NULL,
	status        TEXT NOT NULL,
	page_count    INTEGER NOT NULL DEFAULT 0,
	words         INTEGER NOT NULL DEFAULT 0,
	bundle_bytes  BIGINT NOT NULL DEFAULT 0,
	bundle_url    TEXT NOT NULL DEFAULT '',
	error_code    TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS conversions_account_created_idx
	ON conversions (account, created_at DESC);`
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate conversions: %w", err)
	}
	return nil
}

// Create inserts a new conversion in the queued state.
func (l *ConversionLog) Create(ctx context.Context, id, account, title, slug string) error {
	const q = `
INSERT INTO conversions (id, account, title, slug, status)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := l.db.ExecContext(ctx, q, id, account, title, slug, StatusQueued); err != nil {
		return fmt.Errorf("create conversion %s: %w", id, err)
	}
	return nil
}

// Record inserts an already-finished conversion in one shot. The
// synchronous convert path uses this; queued jobs go through Create
// and the Mark transitions instead.
func (l *ConversionLog) Record(ctx context.Context, c Conversion) error {
	const q = `
INSERT INTO conversions (id, account, title, slug, status, page_count,
	words, bundle_bytes, bundle_url, error_code, error_message, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())`
	_, err := l.db.ExecContext(ctx, q, c.ID, c.Account, c.Title, c.Slug,
		c.Status, c.PageCount, c.Words, c.BundleBytes, c.BundleURL,
		c.ErrorCode, c.ErrorMessage)
	if err != nil {
		return fmt.Errorf("record conversion %s: %w", c.ID, err)
	}
	return nil
}

// MarkRunning moves a conversion to the running state.
func (l *ConversionLog) MarkRunning(ctx context.Context, id string) error {
	const q = `UPDATE conversions SET status = $2 WHERE id = $1`
	if _, err := l.db.ExecContext(ctx, q, id, StatusRunning); err != nil {
		return fmt.Errorf("mark running %s: %w", id, err)
	}
	return nil
}

// MarkCompleted records a finished conversion and its bundle location.
func (l *ConversionLog) MarkCompleted(ctx context.Context, id string, pageCount, words int, bundleBytes int64, bundleURL string) error {
	const q = `
UPDATE conversions
SET status = $2, page_count = $3, words = $4, bundle_bytes = $5,
    bundle_url = $6, finished_at = now()
WHERE id = $1`
	if _, err := l.db.ExecContext(ctx, q, id, StatusCompleted, pageCount, words, bundleBytes, bundleURL); err != nil {
		return fmt.Errorf("mark completed %s: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed conversion with its classified code.
func (l *ConversionLog) MarkFailed(ctx context.Context, id, code, message string) error {
	const q = `
UPDATE conversions
SET status = $2, error_code = $3, error_message = $4, finished_at = now()
WHERE id = $1`
	if _, err := l.db.ExecContext(ctx, q, id, StatusFailed, code, message); err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	return nil
}

// Get returns one conversion.
func (l *ConversionLog) Get(ctx context.Context, id string) (Conversion, error) {
	const q = `
SELECT id, account, title, slug, status, page_count, words, bundle_bytes,
       bundle_url, error_code, error_message, created_at, finished_at
FROM conversions WHERE id = $1`
	var c Conversion
	err := l.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.Account, &c.Title, &c.Slug, &c.Status, &c.PageCount,
		&c.Words, &c.BundleBytes, &c.BundleURL, &c.ErrorCode,
		&c.ErrorMessage, &c.CreatedAt, &c.FinishedAt)
	if err != nil {
		return Conversion{}, fmt.Errorf("get conversion %s: %w", id, err)
	}
	return c, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Recent lists an account's conversions, newest first.
func (l *ConversionLog) Recent(ctx context.Context, account string, limit int) ([]Conversion, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	const q = `
SELECT id, account, title, slug, status, page_count, words, bundle_bytes,
       bundle_url, error_code, error_message, created_at, finished_at
FROM conversions
WHERE account = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := l.db.QueryContext(ctx, q, account, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversions for %s: %w", account, err)
	}
	defer rows.Close()

	var out []Conversion
	for rows.Next() {
		var c Conversion
		if err := rows.Scan(
			&c.ID, &c.Account, &c.Title, &c.Slug, &c.Status, &c.PageCount,
			&c.Words, &c.BundleBytes, &c.BundleURL, &c.ErrorCode,
			&c.ErrorMessage, &c.CreatedAt, &c.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversions for %s: %w", account, err)
	}
	return out, nil
}

// Stats summarizes the table for monitoring.
type Stats struct {
	Total     int64
	Completed int64
	Failed    int64
	Pages     int64
}

// Stats aggregates conversion counts.
func (l *ConversionLog) Stats(ctx context.Context) (Stats, error) {
	const q = `
SELECT count(*),
       count(*) FILTER (WHERE status = 'completed'),
       count(*) FILTER (WHERE status = 'failed'),
       COALESCE(sum(page_count), 0)
FROM conversions`
	var st Stats
	if err := l.db.QueryRowContext(ctx, q).Scan(&st.Total, &st.Completed, &st.Failed, &st.Pages); err != nil {
		return Stats{}, fmt.Errorf("summarize conversions: %w", err)
	}
	return st, nil
}

// Package logdb reads llm's interaction log database.
//
// The database is owned by the host tool and treated as strictly
// read-only and append-only here. Records are ordered by their
// datetime_utc column, which llm writes as lexicographically
// comparable UTC timestamps.
package logdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/thebtf/recall/pkg/models"
)

// PathLocator resolves the log database location. Implemented by
// llmcli.Client in production.
type PathLocator interface {
	LogsPath(ctx context.Context) (string, error)
}

// Reader queries the interaction log for fresh records.
type Reader struct {
	locator PathLocator
	logger  zerolog.Logger

	mu   sync.Mutex
	path string
	db   *sql.DB
}

// NewReader creates a reader that resolves the log store via locator.
func NewReader(locator PathLocator, logger zerolog.Logger) *Reader {
	return &Reader{
		locator: locator,
		logger:  logger.With().Str("component", "logdb").Logger(),
	}
}

// Locate returns the log database path, resolving it on first use.
func (r *Reader) Locate(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locateLocked(ctx)
}

func (r *Reader) locateLocked(ctx context.Context) (string, error) {
	if r.path != "" {
		return r.path, nil
	}
	path, err := r.locator.LogsPath(ctx)
	if err != nil {
		return "", err
	}
	r.path = path
	return path, nil
}

// open returns the cached read-only connection, establishing it if needed.
func (r *Reader) open(ctx context.Context) (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}

	path, err := r.locateLocked(ctx)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}
	// Single background reader; no pool needed.
	db.SetMaxOpenConns(1)

	r.db = db
	return db, nil
}

// reset drops the cached connection and path so the next call
// re-resolves the store (it may have been rotated or deleted).
func (r *Reader) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		_ = r.db.Close()
		r.db = nil
	}
	r.path = ""
}

// LatestSince returns the single most recent record with a timestamp
// strictly greater than watermark, or the most recent record overall
// when watermark is empty. No qualifying record yields (nil, nil).
func (r *Reader) LatestSince(ctx context.Context, watermark string) (*models.InteractionRecord, error) {
	db, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	const baseQuery = `
		SELECT id, COALESCE(prompt, ''), COALESCE(model, ''), COALESCE(datetime_utc, '')
		FROM responses
	`

	var row *sql.Row
	if watermark == "" {
		row = db.QueryRowContext(ctx, baseQuery+` ORDER BY datetime_utc DESC LIMIT 1`)
	} else {
		row = db.QueryRowContext(ctx, baseQuery+` WHERE datetime_utc > ? ORDER BY datetime_utc DESC LIMIT 1`, watermark)
	}

	var rec models.InteractionRecord
	err = row.Scan(&rec.ID, &rec.Prompt, &rec.Model, &rec.DatetimeUTC)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Debug().Err(err).Msg("Log query failed, resetting connection")
		r.reset()
		return nil, fmt.Errorf("query log store: %w", err)
	}
	return &rec, nil
}

// Close releases the database connection.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

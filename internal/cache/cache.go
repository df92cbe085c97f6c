// Package cache provides a SQLite-backed extraction cache keyed by document
// identity and content fingerprint. OCR is the most expensive step of the
// ingestion pipeline, so extracted text is persisted across restarts and
// re-ingestions; a document is only re-extracted when its content changes.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/oraculo-labs/oraculo-go/internal/extract"
)

// Stats counts cache activity since the store was opened.
type Stats struct {
	// Hits is the number of lookups served from the cache.
	Hits int64
	// Misses is the number of lookups that found no usable entry.
	Misses int64
	// Computations is the number of extractions actually executed.
	Computations int64
}

// Store persists extraction results keyed by (identity, fingerprint).
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the cached extraction for the identity if its fingerprint
	// matches, or (nil, false) when the entry is absent or stale.
	Get(ctx context.Context, identity, fingerprint string) (*extract.ExtractedText, bool, error)
	// Put stores an extraction result, replacing any prior entry for the
	// same identity.
	Put(ctx context.Context, text *extract.ExtractedText) error
	// GetOrCompute returns the cached extraction for the identity, or runs
	// compute exactly once per (identity, fingerprint) across concurrent
	// callers and stores the result on success.
	GetOrCompute(ctx context.Context, identity, fingerprint string, compute func(context.Context) (*extract.ExtractedText, error)) (*extract.ExtractedText, error)
	// Purge removes a stale entry for the identity when its fingerprint no
	// longer matches currentFingerprint. An empty currentFingerprint removes
	// the entry unconditionally.
	Purge(ctx context.Context, identity, currentFingerprint string) error
	// Stats returns activity counters.
	Stats() Stats
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// group collapses concurrent computations for the same key.
	group singleflight.Group

	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
}

// DefaultDBPath returns the default path for the extraction cache database.
// It resolves to ~/.oraculo/extractions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cache: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".oraculo")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cache: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "extractions.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist. One row per
// identity; replacing a row with a newer fingerprint drops the old one.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS extractions (
    identity     TEXT    PRIMARY KEY,
    fingerprint  TEXT    NOT NULL,
    pages        TEXT    NOT NULL,  -- JSON array of page texts
    warnings     TEXT    NOT NULL,  -- JSON array of warnings
    extracted_at INTEGER NOT NULL   -- Unix timestamp (seconds)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("cache: migrate: %w", err)
	}
	return nil
}

// Get returns the cached extraction for the identity when its fingerprint
// matches. A row with a different fingerprint is stale and counts as a miss.
func (s *SQLiteStore) Get(ctx context.Context, identity, fingerprint string) (*extract.ExtractedText, bool, error) {
	const q = `SELECT fingerprint, pages, warnings, extracted_at FROM extractions WHERE identity = ?`

	var gotFP, pagesJSON, warningsJSON string
	var ts int64
	err := s.db.QueryRowContext(ctx, q, identity).Scan(&gotFP, &pagesJSON, &warningsJSON, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	if gotFP != fingerprint {
		s.misses.Add(1)
		return nil, false, nil
	}

	text := &extract.ExtractedText{
		Identity:    identity,
		Fingerprint: gotFP,
		ExtractedAt: time.Unix(ts, 0).UTC(),
	}
	if err := json.Unmarshal([]byte(pagesJSON), &text.Pages); err != nil {
		return nil, false, fmt.Errorf("cache: decode pages for %s: %w", identity, err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &text.Warnings); err != nil {
		return nil, false, fmt.Errorf("cache: decode warnings for %s: %w", identity, err)
	}
	s.hits.Add(1)
	return text, true, nil
}

// Put stores an extraction result, replacing any prior entry for the identity.
func (s *SQLiteStore) Put(ctx context.Context, text *extract.ExtractedText) error {
	pagesJSON, err := json.Marshal(text.Pages)
	if err != nil {
		return fmt.Errorf("cache: encode pages for %s: %w", text.Identity, err)
	}
	warnings := text.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("cache: encode warnings for %s: %w", text.Identity, err)
	}

	const q = `
INSERT INTO extractions (identity, fingerprint, pages, warnings, extracted_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
    fingerprint  = excluded.fingerprint,
    pages        = excluded.pages,
    warnings     = excluded.warnings,
    extracted_at = excluded.extracted_at`
	if _, err := s.db.ExecContext(ctx, q,
		text.Identity, text.Fingerprint, string(pagesJSON), string(warningsJSON), text.ExtractedAt.Unix()); err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// GetOrCompute returns the cached extraction or computes and stores it.
// Concurrent callers for the same (identity, fingerprint) share a single
// computation; a failed computation is not cached so a later call retries.
func (s *SQLiteStore) GetOrCompute(ctx context.Context, identity, fingerprint string, compute func(context.Context) (*extract.ExtractedText, error)) (*extract.ExtractedText, error) {
	if text, ok, err := s.Get(ctx, identity, fingerprint); err != nil {
		return nil, err
	} else if ok {
		return text, nil
	}

	key := identity + "\x00" + fingerprint
	v, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have stored the
		// entry between our miss and acquiring the flight.
		if text, ok, err := s.Get(ctx, identity, fingerprint); err != nil {
			return nil, err
		} else if ok {
			return text, nil
		}

		s.computations.Add(1)
		text, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.Put(ctx, text); err != nil {
			return nil, err
		}
		return text, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*extract.ExtractedText), nil
}

// Purge removes the entry for the identity when its stored fingerprint does
// not match currentFingerprint. Pass an empty currentFingerprint to remove
// the entry unconditionally, e.g. when the document left the library.
func (s *SQLiteStore) Purge(ctx context.Context, identity, currentFingerprint string) error {
	const q = `DELETE FROM extractions WHERE identity = ? AND (? = '' OR fingerprint <> ?)`
	if _, err := s.db.ExecContext(ctx, q, identity, currentFingerprint, currentFingerprint); err != nil {
		return fmt.Errorf("cache: purge: %w", err)
	}
	return nil
}

// Stats returns the activity counters accumulated since Open.
func (s *SQLiteStore) Stats() Stats {
	return Stats{
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Computations: s.computations.Load(),
	}
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("cache: close: %w", err)
	}
	return nil
}

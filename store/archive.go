// Package store archives crawl sessions in a SQLite database: one row per
// session, per fetched page and per skipped page.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lukemcguire/wordcrawl/crawler"
	"github.com/lukemcguire/wordcrawl/result"
)

// ErrSessionNotFound is returned when a session ID has no archive row.
var ErrSessionNotFound = errors.New("session not found")

// Archive is a SQLite-backed crawler.Recorder.
type Archive struct {
	db   *sql.DB
	path string
}

var _ crawler.Recorder = (*Archive)(nil)

// Options configures Archive behavior.
type Options struct {
	// CreateIfNotExists creates the database file and its directory.
	CreateIfNotExists bool
	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default archive options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the archive database at path.
func Open(path string, opts Options) (*Archive, error) {
	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("archive not found at %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	a := &Archive{db: db, path: path}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}
	if err := a.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return a, nil
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		seed_url TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		fetched INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		truncated INTEGER DEFAULT 0,
		stop_reason TEXT DEFAULT '',
		word TEXT,
		word_count INTEGER
	);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		text TEXT NOT NULL,
		duplicate INTEGER NOT NULL DEFAULT 0,
		fetched_at DATETIME NOT NULL,
		UNIQUE(session_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_session ON pages(session_id);

	CREATE TABLE IF NOT EXISTS skipped (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		status_code INTEGER,
		error TEXT,
		error_type TEXT,
		UNIQUE(session_id, url)
	);
	`
	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// StartSession records the start of a crawl.
func (a *Archive) StartSession(ctx context.Context, sessionID, seedURL string, maxDepth int) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO sessions (id, seed_url, max_depth, started_at) VALUES (?, ?, ?, ?)`,
		sessionID, seedURL, maxDepth, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// RecordPage stores a fetched page's text.
func (a *Archive) RecordPage(ctx context.Context, sessionID string, page crawler.PageRecord) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO pages (session_id, url, depth, text, duplicate, fetched_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, page.URL, page.Depth, page.Text, page.Duplicate, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// RecordSkip stores a page that could not be fetched.
func (a *Archive) RecordSkip(ctx context.Context, sessionID string, skipped result.SkippedPage) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO skipped (session_id, url, depth, status_code, error, error_type) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, skipped.URL, skipped.Depth, skipped.StatusCode, skipped.Error, string(skipped.ErrorCategory),
	)
	if err != nil {
		return fmt.Errorf("insert skipped page: %w", err)
	}
	return nil
}

// FinishSession stores the final crawl statistics.
func (a *Archive) FinishSession(ctx context.Context, sessionID string, stats result.CrawlStats) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE sessions SET finished_at = ?, fetched = ?, skipped = ?, truncated = ?, stop_reason = ? WHERE id = ?`,
		time.Now().UTC(), stats.Fetched, stats.Skipped, stats.Truncated, string(stats.StopReason), sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res, sessionID)
}

// SetWordCount stores the counted word and its total for a session.
func (a *Archive) SetWordCount(ctx context.Context, sessionID, word string, count int) error {
	res, err := a.db.ExecContext(ctx,
		`UPDATE sessions SET word = ?, word_count = ? WHERE id = ?`,
		word, count, sessionID,
	)
	if err != nil {
		return fmt.Errorf("update word count: %w", err)
	}
	return requireRow(res, sessionID)
}

func requireRow(res sql.Result, sessionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

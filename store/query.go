package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lukemcguire/wordcrawl/result"
)

// Session is an archived crawl session.
type Session struct {
	ID         string
	SeedURL    string
	MaxDepth   int
	StartedAt  time.Time
	FinishedAt time.Time // zero while the crawl is running or if it aborted
	Fetched    int
	Skipped    int
	Truncated  bool
	StopReason result.StopReason
	Word       string
	WordCount  int
}

// Page is an archived fetched page.
type Page struct {
	URL       string
	Depth     int
	Text      string
	Duplicate bool
}

// Session returns the archived session with the given ID.
func (a *Archive) Session(ctx context.Context, sessionID string) (*Session, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, seed_url, max_depth, started_at, finished_at, fetched, skipped,
		       truncated, stop_reason, word, word_count
		FROM sessions WHERE id = ?`, sessionID)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// Sessions returns the most recent sessions, newest first.
func (a *Archive) Sessions(ctx context.Context, limit int) ([]Session, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, seed_url, max_depth, started_at, finished_at, fetched, skipped,
		       truncated, stop_reason, word, word_count
		FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Pages returns the fetched pages of a session in crawl order.
func (a *Archive) Pages(ctx context.Context, sessionID string) ([]Page, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT url, depth, text, duplicate FROM pages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.URL, &p.Depth, &p.Text, &p.Duplicate); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// Skipped returns the skipped pages of a session in crawl order.
func (a *Archive) Skipped(ctx context.Context, sessionID string) ([]result.SkippedPage, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT url, depth, status_code, error, error_type FROM skipped WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query skipped pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var skipped []result.SkippedPage
	for rows.Next() {
		var (
			s        result.SkippedPage
			category string
		)
		if err := rows.Scan(&s.URL, &s.Depth, &s.StatusCode, &s.Error, &category); err != nil {
			return nil, fmt.Errorf("scan skipped page: %w", err)
		}
		s.ErrorCategory = result.ErrorCategory(category)
		skipped = append(skipped, s)
	}
	return skipped, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s          Session
		finishedAt sql.NullTime
		stopReason string
		word       sql.NullString
		wordCount  sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.SeedURL, &s.MaxDepth, &s.StartedAt, &finishedAt, &s.Fetched, &s.Skipped,
		&s.Truncated, &stopReason, &word, &wordCount)
	if err != nil {
		return nil, err
	}
	s.FinishedAt = finishedAt.Time
	s.StopReason = result.StopReason(stopReason)
	s.Word = word.String
	s.WordCount = int(wordCount.Int64)
	return &s, nil
}

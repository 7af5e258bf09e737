// Package result holds the outcome of a crawl and the writers that present
// it: a plain summary line, JSON, CSV and Markdown reports.
package result

import "time"

// StopReason explains why a crawl ended before its frontier emptied.
type StopReason string

const (
	// StopNone means the frontier emptied; the crawl is complete.
	StopNone StopReason = ""
	// StopMaxPages means the page budget was reached.
	StopMaxPages StopReason = "max_pages"
	// StopDeadline means the wall-clock budget ran out.
	StopDeadline StopReason = "deadline"
	// StopMemory means heap use reached the memory budget.
	StopMemory StopReason = "memory"
)

// PageResult records one fetched page.
type PageResult struct {
	URL        string `json:"url"`         // URL that was fetched; the seed keeps its given form
	Depth      int    `json:"depth"`       // Hops from the seed at first discovery
	TextIndex  int    `json:"-"`           // Index of this page's text in Result.Texts
	TextLength int    `json:"text_length"` // Length of the page text in bytes
	Duplicate  bool   `json:"duplicate"`   // Text was already collected from an earlier page
}

// SkippedPage records a page that could not be fetched under the skip policy.
type SkippedPage struct {
	URL           string        `json:"url"`
	Depth         int           `json:"depth"`
	StatusCode    int           `json:"status_code,omitempty"`
	Error         string        `json:"error"`
	ErrorCategory ErrorCategory `json:"error_type"`
}

// CrawlStats contains aggregate statistics for a crawl.
type CrawlStats struct {
	Fetched    int           // Pages fetched successfully
	Skipped    int           // Pages that failed and were skipped
	Enqueued   int           // URLs ever placed on the frontier (visited set size)
	DeepestHop int           // Largest depth fetched
	Truncated  bool          // A budget stopped the crawl early
	StopReason StopReason    // Which budget, when Truncated
	Duration   time.Duration // Wall time of the crawl
}

// Result is the complete output of one crawl session.
type Result struct {
	SessionID string        // Unique ID of the crawl session
	SeedURL   string        // Seed URL as given
	MaxDepth  int           // Depth bound the crawl ran with
	Texts     []string      // Distinct page texts, in first-collected order
	Pages     []PageResult  // Every fetched page, in fetch order
	Skipped   []SkippedPage // Pages skipped after a fetch error
	Stats     CrawlStats
}

package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

type jsonStats struct {
	Fetched    int        `json:"fetched"`
	Skipped    int        `json:"skipped"`
	Enqueued   int        `json:"enqueued"`
	DeepestHop int        `json:"deepest_hop"`
	Truncated  bool       `json:"truncated"`
	StopReason StopReason `json:"stop_reason,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

type jsonReport struct {
	SessionID string        `json:"session_id"`
	SeedURL   string        `json:"seed_url"`
	MaxDepth  int           `json:"max_depth"`
	Word      string        `json:"word"`
	Count     int           `json:"count"`
	Pages     []PageReport  `json:"pages"`
	Skipped   []SkippedPage `json:"skipped"`
	Stats     jsonStats     `json:"stats"`
}

// WriteJSON writes the report as an indented JSON object.
// Page texts are not included; they can be large and are available in the archive.
func WriteJSON(w io.Writer, report *Report) error {
	res := report.Result
	out := jsonReport{
		SessionID: res.SessionID,
		SeedURL:   res.SeedURL,
		MaxDepth:  res.MaxDepth,
		Word:      report.Word,
		Count:     report.Count,
		Pages:     report.Pages,
		Skipped:   res.Skipped,
		Stats: jsonStats{
			Fetched:    res.Stats.Fetched,
			Skipped:    res.Stats.Skipped,
			Enqueued:   res.Stats.Enqueued,
			DeepestHop: res.Stats.DeepestHop,
			Truncated:  res.Stats.Truncated,
			StopReason: res.Stats.StopReason,
			DurationMS: res.Stats.Duration.Milliseconds(),
		},
	}
	if out.Pages == nil {
		out.Pages = []PageReport{}
	}
	if out.Skipped == nil {
		out.Skipped = []SkippedPage{}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes one row per fetched or skipped page.
// Always includes a header row, even if nothing was crawled.
// Column order: url, depth, status, matches, text_length, error_type
func WriteCSV(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)

	header := []string{"url", "depth", "status", "matches", "text_length", "error_type"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, page := range report.Pages {
		record := []string{
			page.URL,
			strconv.Itoa(page.Depth),
			"fetched",
			strconv.Itoa(page.Matches),
			strconv.Itoa(page.TextLength),
			"",
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", page.URL, err)
		}
	}

	for _, skipped := range report.Result.Skipped {
		record := []string{
			skipped.URL,
			strconv.Itoa(skipped.Depth),
			"skipped",
			"",
			"",
			string(skipped.ErrorCategory),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", skipped.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

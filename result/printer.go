package result

import (
	"fmt"
	"io"
)

// PrintReport writes skipped pages (if any), an early-stop note (if any) and
// the summary line to w.
func PrintReport(w io.Writer, report *Report) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	res := report.Result
	if len(res.Skipped) > 0 {
		writef("Skipped pages:\n")
		for _, skipped := range res.Skipped {
			writef("  URL: %s\n", skipped.URL)
			writef("  Error: %s\n", skipped.Error)
		}
	}
	if res.Stats.Truncated {
		writef("Crawl stopped early (%s) after %d pages\n", res.Stats.StopReason, res.Stats.Fetched)
	}
	writef("%s\n", report.Summary())
}

package result

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintReport_Complete(t *testing.T) {
	var buf bytes.Buffer
	res := &Result{Texts: []string{"web site text"}}

	PrintReport(&buf, NewReport(res, "kayako"))

	want := "Found 0 instances of 'kayako' in the body of the page\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintReport_WithSkippedAndTruncated(t *testing.T) {
	var buf bytes.Buffer
	res := sampleResult()
	res.Stats.Truncated = true
	res.Stats.StopReason = StopMaxPages

	PrintReport(&buf, NewReport(res, "kayako"))

	got := buf.String()
	for _, want := range []string{
		"Skipped pages:\n",
		"  URL: https://site.test/gone\n",
		"  Error: unexpected status 404\n",
		"Crawl stopped early (max_pages) after 3 pages\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q in %q", want, got)
		}
	}
	if !strings.HasSuffix(got, "Found 2 instances of 'kayako' in the body of the page\n") {
		t.Errorf("summary line must come last, got %q", got)
	}
}

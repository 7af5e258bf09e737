package result

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
)

// WriteMarkdown writes the report as GitHub-flavored Markdown.
func WriteMarkdown(w io.Writer, report *Report) error {
	res := report.Result
	md := markdown.NewMarkdown(w)

	md.H1("Word Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + res.SeedURL + "`"},
			{"Session", res.SessionID},
			{"Max Depth", strconv.Itoa(res.MaxDepth)},
			{"Word", "`" + report.Word + "`"},
			{"Occurrences", "**" + strconv.Itoa(report.Count) + "**"},
			{"Pages Fetched", strconv.Itoa(res.Stats.Fetched)},
			{"Status", statusText(res)},
		},
	})
	md.PlainText("")

	md.H2("Pages")
	md.PlainText("")
	rows := make([][]string, 0, len(report.Pages))
	for _, page := range report.Pages {
		rows = append(rows, []string{
			page.URL,
			strconv.Itoa(page.Depth),
			strconv.Itoa(page.Matches),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Matches"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(res.Skipped) > 0 {
		md.H2("Skipped")
		md.PlainText("")
		skippedRows := make([][]string, 0, len(res.Skipped))
		for _, skipped := range res.Skipped {
			skippedRows = append(skippedRows, []string{
				skipped.URL,
				FormatCategory(skipped.ErrorCategory),
				skipped.Error,
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Category", "Error"},
			Rows:   skippedRows,
		})
		md.PlainText("")
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("write markdown output: %w", err)
	}
	return nil
}

func statusText(res *Result) string {
	if res.Stats.Truncated {
		return fmt.Sprintf("Stopped early (%s)", res.Stats.StopReason)
	}
	return "Complete"
}

package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/wordcrawl/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	warnStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	cellStyle        = lipgloss.NewStyle()
	matchStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder is the display order for skip categories, most actionable first.
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryTLS,
	result.CategoryDisallowed,
	result.CategoryUnknown,
}

// RenderSummary produces a Lip Gloss styled summary of a crawl report.
func RenderSummary(report *result.Report) string {
	if report == nil || report.Result == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder
	res := report.Result

	if len(report.Pages) > 0 {
		builder.WriteString(pagesTable(report).Render())
		builder.WriteString("\n\n")
	}

	grouped := make(map[result.ErrorCategory][]result.SkippedPage)
	for _, skipped := range res.Skipped {
		cat := skipped.ErrorCategory
		if cat == "" {
			cat = result.CategoryUnknown
		}
		grouped[cat] = append(grouped[cat], skipped)
	}
	for _, cat := range categoryOrder {
		pages := grouped[cat]
		if len(pages) == 0 {
			continue
		}
		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(cat), len(pages))))
		builder.WriteString("\n")
		builder.WriteString(skippedTable(pages).Render())
		builder.WriteString("\n\n")
	}

	if res.Stats.Truncated {
		builder.WriteString(warnStyle.Render(fmt.Sprintf("Crawl stopped early (%s)", res.Stats.StopReason)))
		builder.WriteString("\n")
	}

	summaryStyle := titleStyle
	if report.Count > 0 {
		summaryStyle = successStyle
	}
	builder.WriteString(summaryStyle.Render(report.Summary()))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"Fetched %d pages (%d skipped, deepest hop %d) in %s",
		res.Stats.Fetched,
		res.Stats.Skipped,
		res.Stats.DeepestHop,
		res.Stats.Duration.Round(time.Millisecond),
	)))
	builder.WriteString("\n")

	return builder.String()
}

func pagesTable(report *result.Report) *table.Table {
	rows := make([][]string, 0, len(report.Pages))
	for _, page := range report.Pages {
		matches := strconv.Itoa(page.Matches)
		if page.Duplicate {
			matches += " (dup)"
		}
		rows = append(rows, []string{page.URL, strconv.Itoa(page.Depth), matches})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("URL", "Depth", "Matches").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && report.Pages[row].Matches > 0 {
				return matchStyle
			}
			return cellStyle
		}).
		Rows(rows...)
}

func skippedTable(pages []result.SkippedPage) *table.Table {
	rows := make([][]string, 0, len(pages))
	for _, page := range pages {
		status := strconv.Itoa(page.StatusCode)
		if page.StatusCode == 0 {
			status = page.Error
		}
		rows = append(rows, []string{page.URL, strconv.Itoa(page.Depth), status})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("URL", "Depth", "Status").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 {
				return statusErrorStyle
			}
			return cellStyle
		}).
		Rows(rows...)
}

package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/wordcrawl/crawler"
	"github.com/lukemcguire/wordcrawl/result"
)

// CrawlProgressMsg reports progress after one page was fetched or skipped.
type CrawlProgressMsg struct {
	Fetched int
	Skipped int
	Queued  int
	Depth   int
	URL     string
}

// CrawlDoneMsg signals the crawl has completed.
type CrawlDoneMsg struct {
	Report *result.Report
	Err    error
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. A closed channel yields no message; completion arrives as the
// CrawlDoneMsg from startCrawl.
func waitForProgress(ch <-chan crawler.CrawlEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return CrawlProgressMsg{
			Fetched: evt.Fetched,
			Skipped: evt.Skipped,
			Queued:  evt.Queued,
			Depth:   evt.Depth,
			URL:     evt.URL,
		}
	}
}

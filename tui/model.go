// Package tui provides the Bubble Tea terminal UI for wordcrawl, displaying
// live crawl progress and a styled summary of the word count.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/wordcrawl/crawler"
	"github.com/lukemcguire/wordcrawl/result"
)

// CrawlFunc runs a crawl to completion and scores it.
type CrawlFunc func(ctx context.Context) (*result.Report, error)

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	crawl      CrawlFunc
	spinner    spinner.Model
	progressCh chan crawler.CrawlEvent

	fetched  int
	skipped  int
	queued   int
	depth    int
	current  string
	quitting bool
	done     bool
	report   *result.Report
	err      error
	width    int
}

// NewModel creates a TUI model. crawl must send its progress on progressCh;
// the model closes progressCh once crawl returns.
func NewModel(ctx context.Context, cancel context.CancelFunc, crawl CrawlFunc, progressCh chan crawler.CrawlEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		crawl:      crawl,
		spinner:    spin,
		progressCh: progressCh,
	}
}

// Init starts the spinner, the crawl and the progress listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCrawl(), waitForProgress(m.progressCh))
}

// startCrawl returns a tea.Cmd that runs the crawl and sends CrawlDoneMsg.
func (m Model) startCrawl() tea.Cmd {
	return func() tea.Msg {
		report, err := m.crawl(m.ctx)
		close(m.progressCh)
		if err != nil {
			err = fmt.Errorf("crawl: %w", err)
		}
		return CrawlDoneMsg{Report: report, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case CrawlProgressMsg:
		m.fetched = msg.Fetched
		m.skipped = msg.Skipped
		m.queued = msg.Queued
		m.depth = msg.Depth
		m.current = msg.URL
		return m, waitForProgress(m.progressCh)

	case CrawlDoneMsg:
		m.done = true
		m.report = msg.Report
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.report != nil {
		return RenderSummary(m.report)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	if m.quitting {
		return dimStyle.Render("Stopping...") + "\n"
	}
	return fmt.Sprintf("%s Crawling depth %d... fetched %d, skipped %d, queued %d\n%s\n",
		m.spinner.View(), m.depth, m.fetched, m.skipped, m.queued,
		dimStyle.Render("  "+m.current))
}

// Report returns the scored crawl result, or nil if the crawl did not finish.
func (m Model) Report() *result.Report {
	return m.report
}

// Err returns the crawl error, if any.
func (m Model) Err() error {
	return m.err
}

// Interrupted reports whether the user quit before the crawl finished.
func (m Model) Interrupted() bool {
	return m.quitting && !m.done
}

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/wordcrawl/config"
	"github.com/lukemcguire/wordcrawl/result"
	"github.com/lukemcguire/wordcrawl/store"
	"github.com/lukemcguire/wordcrawl/wordcount"
)

const defaultSessionLimit = 20

// NewSessionsCmd creates the sessions command, which lists archived crawls.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List crawls recorded in the archive",
		Long: `List the most recent crawls recorded with --archive, newest first.

Examples:
  # List the last 20 crawls in the default archive
  wordcrawl sessions

  # List the last 5 crawls in a specific archive
  wordcrawl sessions --archive ./crawls.db --limit 5`,
		Args: cobra.NoArgs,
		RunE: runSessionsCmd,
	}
	cmd.Flags().String("archive", config.DefaultArchivePath(), "Archive database to read")
	cmd.Flags().Int("limit", defaultSessionLimit, "Maximum number of sessions to list")
	return cmd
}

// NewShowCmd creates the show command, which prints one archived crawl.
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show the pages and skips of an archived crawl",
		Args:  cobra.ExactArgs(1),
		RunE:  runShowCmd,
	}
	cmd.Flags().String("archive", config.DefaultArchivePath(), "Archive database to read")
	return cmd
}

func openArchiveForRead(cmd *cobra.Command) (*store.Archive, error) {
	path, _ := cmd.Flags().GetString("archive")
	return store.Open(path, store.Options{})
}

func runSessionsCmd(cmd *cobra.Command, _ []string) (err error) {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return fmt.Errorf("invalid limit %d: must be positive", limit)
	}

	archive, err := openArchiveForRead(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := archive.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()

	sessions, err := archive.Sessions(cmd.Context(), limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		_, _ = fmt.Fprintf(w, "No crawls recorded in %s\n", archive.Path())
		return nil
	}
	_, _ = fmt.Fprintf(w, "%-36s  %-20s  %5s  %7s  %7s  %s\n", "ID", "Started", "Depth", "Fetched", "Count", "Seed")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%-36s  %-20s  %5d  %7d  %7s  %s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.MaxDepth, s.Fetched, countColumn(s), s.SeedURL)
	}
	return nil
}

// countColumn is blank for crawls that never produced a count.
func countColumn(s store.Session) string {
	if s.Word == "" {
		return "-"
	}
	return strconv.Itoa(s.WordCount)
}

func runShowCmd(cmd *cobra.Command, args []string) (err error) {
	archive, err := openArchiveForRead(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := archive.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()

	ctx := cmd.Context()
	session, err := archive.Session(ctx, args[0])
	if err != nil {
		return err
	}
	pages, err := archive.Pages(ctx, session.ID)
	if err != nil {
		return err
	}
	skipped, err := archive.Skipped(ctx, session.ID)
	if err != nil {
		return err
	}

	printSession(cmd.OutOrStdout(), session, pages, skipped)
	return nil
}

func printSession(w io.Writer, s *store.Session, pages []store.Page, skipped []result.SkippedPage) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	writef("Session %s\n", s.ID)
	writef("  Seed:    %s (depth %d)\n", s.SeedURL, s.MaxDepth)
	writef("  Started: %s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if s.FinishedAt.IsZero() {
		writef("  Status:  did not finish\n")
	} else if s.Truncated {
		writef("  Status:  stopped early (%s)\n", s.StopReason)
	}

	writef("\nPages (%d):\n", len(pages))
	for _, p := range pages {
		note := ""
		if p.Duplicate {
			note = " (duplicate text)"
		}
		matches := ""
		if s.Word != "" {
			matches = fmt.Sprintf(", %d matches", wordcount.Count([]string{p.Text}, s.Word))
		}
		writef("  [%d] %s%s%s\n", p.Depth, p.URL, matches, note)
	}

	if len(skipped) > 0 {
		writef("\nSkipped pages (%d):\n", len(skipped))
		for _, sp := range skipped {
			writef("  [%d] %s: %s (%s)\n", sp.Depth, sp.URL, sp.Error, result.FormatCategory(sp.ErrorCategory))
		}
	}

	if s.Word != "" {
		writef("\n%s\n", wordcount.Summary(s.WordCount, s.Word))
	}
}

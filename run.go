package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/wordcrawl/config"
	"github.com/lukemcguire/wordcrawl/crawler"
	"github.com/lukemcguire/wordcrawl/logging"
	"github.com/lukemcguire/wordcrawl/result"
	"github.com/lukemcguire/wordcrawl/store"
	"github.com/lukemcguire/wordcrawl/tui"
)

// runCrawl wires the renderer, engine and optional archive, runs the crawl
// (with or without the TUI) and writes the report.
func runCrawl(cmd *cobra.Command, cfg *config.Config) (err error) {
	logger := logging.New(cfg.LogFormat, logging.LevelFor(cfg.Verbose), cmd.ErrOrStderr())
	slog.SetDefault(logger)
	if cfg.ConfigFilePath != "" {
		logger.Debug("loaded config file", "path", cfg.ConfigFilePath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := crawler.NewHTTPRenderer(cfg.FetchConfig(), crawler.WithRendererLogger(logger))
	defer func() {
		if closeErr := renderer.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close renderer: %w", closeErr)
		}
	}()

	opts := []crawler.Option{crawler.WithLogger(logger)}

	var archive *store.Archive
	if cfg.ArchivePath != "" {
		archive, err = store.Open(cfg.ArchivePath, store.DefaultOptions())
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := archive.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close archive: %w", closeErr)
			}
		}()
		opts = append(opts, crawler.WithRecorder(archive))
		logger.Debug("archiving crawl", "path", archive.Path())
	}

	crawl := func(ctx context.Context, extra ...crawler.Option) (*result.Report, error) {
		engine := crawler.New(renderer, cfg.EngineConfig(), slices.Concat(opts, extra)...)
		res, err := engine.Run(ctx, cfg.URL, cfg.Depth)
		if err != nil {
			return nil, err
		}
		logger.Debug("request rate at finish", "rps", renderer.CurrentRate(), "avg_rtt", renderer.AverageRTT())
		report := result.NewReport(res, cfg.Word)
		if archive != nil {
			if err := archive.SetWordCount(context.WithoutCancel(ctx), res.SessionID, report.Word, report.Count); err != nil {
				return nil, err
			}
		}
		return report, nil
	}

	if !cfg.TUI {
		report, err := crawl(ctx)
		if err != nil {
			return err
		}
		return emitReport(cmd.OutOrStdout(), cfg, report, false)
	}

	progressCh := make(chan crawler.CrawlEvent, 100)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewModel(ctx, cancel, func(ctx context.Context) (*result.Report, error) {
		return crawl(ctx, crawler.WithProgress(progressCh))
	}, progressCh)

	finalModel, err := tea.NewProgram(model, tea.WithOutput(cmd.OutOrStdout())).Run()
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	final, ok := finalModel.(tui.Model)
	if !ok {
		return errors.New("unexpected tui model")
	}
	if final.Interrupted() {
		return fmt.Errorf("crawl interrupted: %w", context.Canceled)
	}
	if final.Err() != nil {
		return final.Err()
	}
	return emitReport(cmd.OutOrStdout(), cfg, final.Report(), true)
}

// emitReport writes the report to cfg.OutputPath or stdout. A text report
// already shown by the TUI is not printed again.
func emitReport(stdout io.Writer, cfg *config.Config, report *result.Report, shownByTUI bool) error {
	if cfg.OutputPath == "" {
		if shownByTUI && cfg.Format == config.FormatText {
			return nil
		}
		return writeReport(stdout, cfg.Format, report)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := writeReport(file, cfg.Format, report); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

func writeReport(w io.Writer, format string, report *result.Report) error {
	switch format {
	case config.FormatJSON:
		return result.WriteJSON(w, report)
	case config.FormatCSV:
		return result.WriteCSV(w, report)
	case config.FormatMarkdown:
		return result.WriteMarkdown(w, report)
	default:
		result.PrintReport(w, report)
		return nil
	}
}

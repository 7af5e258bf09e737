package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/wordcrawl/config"
)

// NewRootCmd creates the wordcrawl command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordcrawl",
		Short: "Count a word across the pages of a website",
		Long: `wordcrawl crawls a website breadth-first from a seed URL, collects the
visible text of every page within the depth limit, and reports how many
times a word occurs in it.

Only links containing the seed's host are followed. PDFs, fragment links
and mail links are ignored.

Examples:
  # Count "kayako" two hops deep from the Kayako home page
  wordcrawl

  # Count a word on another site, one hop deep
  wordcrawl -u https://example.com/ -w domain -d 1

  # Keep going past broken pages and write a JSON report
  wordcrawl -u https://example.com/ --on-error skip --format json -o report.json

Configuration file (.wordcrawl.yaml or $XDG_CONFIG_HOME/wordcrawl/config.yaml):
  word: kayako
  depth: 3
  concurrency: 4
  rate_limit: 5
  robots: true
  on_error: skip`,
		Version:       getVersion(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	flags := cmd.Flags()
	flags.StringP("url", "u", config.DefaultURL, "URL to load")
	flags.StringP("word", "w", config.DefaultWord, "Word to search")
	flags.StringP("depth", "d", strconv.Itoa(config.DefaultDepth), "Depth of the search")
	flags.StringP("config", "c", "", "Configuration file (default: .wordcrawl.yaml, then the XDG config dir)")

	flags.Int("concurrency", config.DefaultConcurrency, "Pages fetched in parallel within one depth level")
	flags.Int("rate-limit", config.DefaultRateLimit, "Requests per second")
	flags.Duration("target-rtt", 0, "Adapt the request rate toward this response time (0 = fixed rate)")
	flags.Int("retries", config.DefaultRetries, "Retries for transient errors")
	flags.Duration("retry-delay", config.DefaultRetryDelay, "Base delay between retries")
	flags.Duration("timeout", config.DefaultTimeout, "Per-request timeout")
	flags.String("user-agent", "", "User-Agent header (default wordcrawl/1.0)")
	flags.Int64("max-body-size", config.DefaultMaxBodySize, "Maximum bytes read per page")

	flags.Int("max-pages", 0, "Stop after this many pages (0 = unlimited)")
	flags.Duration("deadline", 0, "Stop after this much time (0 = none)")
	flags.Int64("memory-limit", 0, "Stop when heap use nears this many MB (0 = none)")

	flags.String("on-error", "fail-fast", "Fetch error handling: fail-fast or skip")
	flags.Bool("robots", false, "Honor robots.txt")
	flags.Bool("strict-host", false, "Only follow links whose hostname is the seed host or a subdomain")
	flags.String("spill-dir", "", "Keep a memory-mapped snapshot of the visited set in this directory")

	flags.String("archive", "", "Record the crawl in this SQLite database (bare flag: XDG data dir)")
	flags.Lookup("archive").NoOptDefVal = config.DefaultArchivePath()
	flags.StringP("format", "f", config.FormatText, "Report format: text, json, csv or markdown")
	flags.StringP("output", "o", "", "Write the report to this file")
	flags.Bool("tui", false, "Show live progress in the terminal")

	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("log-format", "text", "Log format: text or json")

	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewShowCmd())

	return cmd
}

// Execute runs the root command and exits 1 on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runRootCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return runCrawl(cmd, cfg)
}

// buildConfig layers defaults, the config file and explicitly set flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if flags.Changed("depth") {
		raw, _ := flags.GetString("depth")
		depth, err := config.ParseDepth(raw)
		if err != nil {
			return nil, err
		}
		cfg.Depth = depth
	}

	stringFlags := map[string]*string{
		"url":        &cfg.URL,
		"word":       &cfg.Word,
		"user-agent": &cfg.UserAgent,
		"on-error":   &cfg.OnError,
		"spill-dir":  &cfg.SpillDir,
		"archive":    &cfg.ArchivePath,
		"format":     &cfg.Format,
		"output":     &cfg.OutputPath,
		"log-format": &cfg.LogFormat,
	}
	for name, dst := range stringFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	intFlags := map[string]*int{
		"concurrency": &cfg.Concurrency,
		"rate-limit":  &cfg.RateLimit,
		"retries":     &cfg.Retries,
		"max-pages":   &cfg.MaxPages,
	}
	for name, dst := range intFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}

	if flags.Changed("max-body-size") {
		cfg.MaxBodySize, _ = flags.GetInt64("max-body-size")
	}
	if flags.Changed("memory-limit") {
		cfg.MemoryLimitMB, _ = flags.GetInt64("memory-limit")
	}

	durationFlags := map[string]*time.Duration{
		"target-rtt":  &cfg.TargetRTT,
		"retry-delay": &cfg.RetryDelay,
		"timeout":     &cfg.Timeout,
		"deadline":    &cfg.Deadline,
	}
	for name, dst := range durationFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetDuration(name)
		}
	}

	boolFlags := map[string]*bool{
		"robots":      &cfg.RespectRobots,
		"strict-host": &cfg.StrictHost,
		"tui":         &cfg.TUI,
		"verbose":     &cfg.Verbose,
	}
	for name, dst := range boolFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = config.NewConfig().UserAgent
	}
	return cfg, nil
}

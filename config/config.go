package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/lukemcguire/wordcrawl/crawler"
)

// Default configuration values.
const (
	// DefaultURL and DefaultWord reproduce the CLI's historical defaults.
	DefaultURL  = "https://www.kayako.com/"
	DefaultWord = "kayako"

	// DefaultDepth follows links two hops from the seed.
	DefaultDepth = 2

	// DefaultConcurrency fetches one page at a time, which keeps request
	// order identical to a plain breadth-first walk.
	DefaultConcurrency = 1

	// DefaultRateLimit is the request rate in requests per second.
	DefaultRateLimit = 10

	// DefaultRetries is the number of retries for transient failures.
	DefaultRetries = 2

	DefaultRetryDelay = time.Second
	DefaultTimeout    = 10 * time.Second

	// DefaultMaxBodySize caps how much of each response is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// AppName is used for XDG directory paths.
	AppName = "wordcrawl"

	// LocalConfigFile is looked up in the working directory.
	LocalConfigFile = ".wordcrawl.yaml"
)

// Report formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// Config holds every option of a crawl run. It is filled from defaults, then
// the config file, then explicitly set CLI flags.
type Config struct {
	// URL is the seed page.
	URL string
	// Word is the word to count, case-insensitively.
	Word string
	// Depth is the maximum number of link hops from the seed.
	Depth int

	Concurrency int
	RateLimit   int
	// TargetRTT enables adaptive rate limiting toward this response time.
	TargetRTT   time.Duration
	Retries     int
	RetryDelay  time.Duration
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int64

	// MaxPages, Deadline and MemoryLimitMB are crawl budgets; zero disables each.
	MaxPages      int
	Deadline      time.Duration
	MemoryLimitMB int64

	// OnError is "fail-fast" or "skip".
	OnError       string
	RespectRobots bool
	StrictHost    bool
	// SpillDir keeps a memory-mapped snapshot of the visited-set filter.
	SpillDir string

	// ArchivePath is a SQLite database recording the crawl. Empty disables it.
	ArchivePath string
	Format      string
	// OutputPath receives the report instead of stdout.
	OutputPath string
	TUI        bool

	Verbose   bool
	LogFormat string

	// ConfigFilePath is the config file in use, if any.
	ConfigFilePath string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		URL:         DefaultURL,
		Word:        DefaultWord,
		Depth:       DefaultDepth,
		Concurrency: DefaultConcurrency,
		RateLimit:   DefaultRateLimit,
		Retries:     DefaultRetries,
		RetryDelay:  DefaultRetryDelay,
		Timeout:     DefaultTimeout,
		UserAgent:   crawler.DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		OnError:     string(crawler.FailFast),
		Format:      FormatText,
		LogFormat:   "text",
	}
}

// Validate checks the configuration, returning the first problem found.
// Depth is checked before the URL, matching the CLI's historical order.
func (c *Config) Validate() error {
	if c.Depth <= 0 {
		return ErrInvalidDepth
	}
	if !IsValidURL(c.URL) {
		return ErrInvalidURL
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RateLimit <= 0 {
		return ErrInvalidRateLimit
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxPages < 0 || c.Deadline < 0 || c.MemoryLimitMB < 0 || c.RetryDelay < 0 || c.TargetRTT < 0 {
		return ErrInvalidBudget
	}
	switch crawler.ErrorPolicy(c.OnError) {
	case crawler.FailFast, crawler.SkipAndContinue:
	default:
		return ErrInvalidErrorPolicy
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatCSV, FormatMarkdown:
	default:
		return ErrInvalidFormat
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

// EngineConfig maps the configuration onto the crawl engine's settings.
func (c *Config) EngineConfig() crawler.Config {
	expected := uint(0)
	if c.MaxPages > 0 {
		expected = uint(c.MaxPages)
	}
	return crawler.Config{
		Concurrency:     c.Concurrency,
		ErrorPolicy:     crawler.ErrorPolicy(c.OnError),
		MaxPages:        c.MaxPages,
		Deadline:        c.Deadline,
		MemoryLimitMB:   c.MemoryLimitMB,
		StrictHost:      c.StrictHost,
		ExpectedURLs:    expected,
		VisitedSpillDir: c.SpillDir,
	}
}

// FetchConfig maps the configuration onto the HTTP renderer's settings.
func (c *Config) FetchConfig() crawler.FetchConfig {
	return crawler.FetchConfig{
		RequestTimeout: c.Timeout,
		RateLimit:      c.RateLimit,
		TargetRTT:      c.TargetRTT,
		UserAgent:      c.UserAgent,
		RetryPolicy: crawler.RetryPolicy{
			MaxRetries: c.Retries,
			BaseDelay:  c.RetryDelay,
			MaxDelay:   30 * time.Second,
		},
		RespectRobots: c.RespectRobots,
		MaxBodyBytes:  c.MaxBodySize,
	}
}

// UserConfigFile returns the XDG location of the user's config file.
func UserConfigFile() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DefaultArchivePath returns the XDG data location for the crawl archive.
func DefaultArchivePath() string {
	return filepath.Join(xdg.DataHome, AppName, "archive.db")
}

package config

import "errors"

// Configuration validation errors returned by Config.Validate. The first two
// messages are the ones the CLI has always printed for bad input.
var (
	// ErrInvalidDepth is returned when the depth is not a positive integer.
	ErrInvalidDepth = errors.New("depth must be a positive integer")

	// ErrInvalidURL is returned when the seed URL fails the URL pattern.
	ErrInvalidURL = errors.New("link must be a valid URL")

	// ErrInvalidConcurrency is returned when concurrency is below 1.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidRateLimit is returned when the request rate is below 1.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be positive")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBudget is returned when a page, time or memory budget is negative.
	ErrInvalidBudget = errors.New("invalid budget: must be non-negative")

	// ErrInvalidErrorPolicy is returned for an --on-error value other than fail-fast or skip.
	ErrInvalidErrorPolicy = errors.New("invalid error policy: must be fail-fast or skip")

	// ErrInvalidFormat is returned for an unknown report format.
	ErrInvalidFormat = errors.New("invalid format: must be text, json, csv or markdown")

	// ErrInvalidLogFormat is returned for an unknown log format.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when an explicitly named config file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)

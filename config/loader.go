package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the YAML config file. Only keys present in the file override
// defaults.
type File struct {
	URL           *string        `yaml:"url"`
	Word          *string        `yaml:"word"`
	Depth         *int           `yaml:"depth"`
	Concurrency   *int           `yaml:"concurrency"`
	RateLimit     *int           `yaml:"rate_limit"`
	TargetRTT     *time.Duration `yaml:"target_rtt"`
	Retries       *int           `yaml:"retries"`
	RetryDelay    *time.Duration `yaml:"retry_delay"`
	Timeout       *time.Duration `yaml:"timeout"`
	UserAgent     *string        `yaml:"user_agent"`
	MaxBodySize   *int64         `yaml:"max_body_size"`
	MaxPages      *int           `yaml:"max_pages"`
	Deadline      *time.Duration `yaml:"deadline"`
	MemoryLimitMB *int64         `yaml:"memory_limit_mb"`
	OnError       *string        `yaml:"on_error"`
	RespectRobots *bool          `yaml:"robots"`
	StrictHost    *bool          `yaml:"strict_host"`
	SpillDir      *string        `yaml:"spill_dir"`
	ArchivePath   *string        `yaml:"archive"`
	Format        *string        `yaml:"format"`
	LogFormat     *string        `yaml:"log_format"`
}

// LoadFile reads a YAML config file. A missing file yields ErrConfigNotFound.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// Apply copies every key set in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	set(&cfg.URL, f.URL)
	set(&cfg.Word, f.Word)
	set(&cfg.Depth, f.Depth)
	set(&cfg.Concurrency, f.Concurrency)
	set(&cfg.RateLimit, f.RateLimit)
	set(&cfg.TargetRTT, f.TargetRTT)
	set(&cfg.Retries, f.Retries)
	set(&cfg.RetryDelay, f.RetryDelay)
	set(&cfg.Timeout, f.Timeout)
	set(&cfg.UserAgent, f.UserAgent)
	set(&cfg.MaxBodySize, f.MaxBodySize)
	set(&cfg.MaxPages, f.MaxPages)
	set(&cfg.Deadline, f.Deadline)
	set(&cfg.MemoryLimitMB, f.MemoryLimitMB)
	set(&cfg.OnError, f.OnError)
	set(&cfg.RespectRobots, f.RespectRobots)
	set(&cfg.StrictHost, f.StrictHost)
	set(&cfg.SpillDir, f.SpillDir)
	set(&cfg.ArchivePath, f.ArchivePath)
	set(&cfg.Format, f.Format)
	set(&cfg.LogFormat, f.LogFormat)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// FindConfigFile returns the config file to load:
//  1. configPath when given (it must exist)
//  2. .wordcrawl.yaml in the current directory
//  3. $XDG_CONFIG_HOME/wordcrawl/config.yaml
//
// It returns "" with a nil error when no file is found and none was named.
func FindConfigFile(configPath string) (string, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return configPath, nil
	}

	for _, candidate := range []string{LocalConfigFile, UserConfigFile()} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// Load builds a Config from defaults and the config file found by
// FindConfigFile. Validation is left to the caller, which may still
// override values from flags.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()

	path, err := FindConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	f.Apply(cfg)
	cfg.ConfigFilePath = path
	return cfg, nil
}

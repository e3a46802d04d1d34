// Package config provides configuration management for the migration tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingOutputDir         = errors.New("output.dir is required")
	ErrMissingAssetsDir         = errors.New("output.assets_dir is required")
	ErrMissingDefaultSubdir     = errors.New("output.default_subdir is required")
	ErrMissingSourceBaseURL     = errors.New("source.base_url is required")
	ErrMissingSourceRepo        = errors.New("source.repo is required")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidMaxDelay          = errors.New("retry.max_delay_ms must be at least initial_delay_ms")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidRequestsPerMin    = errors.New("rate_limit.requests_per_minute must be at least 1")
	ErrInvalidJitter            = errors.New("rate_limit.max_jitter_ms must be at least min_jitter_ms")
	ErrInvalidWorkers           = errors.New("workers must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete migration configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Output    OutputConfig    `yaml:"output"`
	Images    ImagesConfig    `yaml:"images"`
	Retry     RetryPolicy     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Workers   int             `yaml:"workers"`
}

// SourceConfig identifies the wiki repository being migrated.
type SourceConfig struct {
	BaseURL       string `yaml:"base_url"`
	Repo          string `yaml:"repo"`
	SessionCookie string `yaml:"session_cookie"`
}

// OutputConfig defines where converted documents and the report land.
type OutputConfig struct {
	Dir             string            `yaml:"dir"`
	AssetsDir       string            `yaml:"assets_dir"`
	CategoryMapping map[string]string `yaml:"category_mapping"`
	DefaultSubdir   string            `yaml:"default_subdir"`
	IndexPage       bool              `yaml:"index_page"`
}

// SubdirFor maps a document's primary category to its output subdirectory,
// falling back to the default subdirectory for unmapped categories.
func (o *OutputConfig) SubdirFor(category string) string {
	if dir, ok := o.CategoryMapping[category]; ok {
		return dir
	}

	return o.DefaultSubdir
}

// ImagesConfig controls image rewriting policy.
type ImagesConfig struct {
	ExpiredDomains  []string `yaml:"expired_domains"`
	PlaceholderPath string   `yaml:"placeholder_path"`
}

// RetryPolicy defines retry behavior for HTTP fetches.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the per-request timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// RateLimitConfig throttles requests toward the source host.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	MinJitterMs       int `yaml:"min_jitter_ms"`
	MaxJitterMs       int `yaml:"max_jitter_ms"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with workable defaults for everything
// except the source repository, which the caller must fill in.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:           "docs/blog/posts",
			AssetsDir:     "docs/blog/assets/images",
			DefaultSubdir: "blog",
			IndexPage:     true,
		},
		Images: ImagesConfig{
			PlaceholderPath: "/assets/images/placeholder.png",
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    1000,
			MaxDelayMs:        5000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        30,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			MinJitterMs:       500,
			MaxJitterMs:       2000,
		},
		Logging: LoggingConfig{Level: "info"},
		Workers: 1,
	}
}

// Load reads configuration from a YAML file, layered over defaults.
func Load(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Output.Dir == "" {
		return ErrMissingOutputDir
	}

	if c.Output.AssetsDir == "" {
		return ErrMissingAssetsDir
	}

	if c.Output.DefaultSubdir == "" {
		return ErrMissingDefaultSubdir
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.MaxDelayMs < c.Retry.InitialDelayMs {
		return ErrInvalidMaxDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.RateLimit.RequestsPerMinute < 1 {
		return ErrInvalidRequestsPerMin
	}

	if c.RateLimit.MaxJitterMs < c.RateLimit.MinJitterMs {
		return ErrInvalidJitter
	}

	if c.Workers < 1 {
		return ErrInvalidWorkers
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// ValidateSource checks the fields only the wiki migration needs. The
// WordPress import works from a local export file and skips these.
func (c *Config) ValidateSource() error {
	if c.Source.BaseURL == "" {
		return ErrMissingSourceBaseURL
	}

	if c.Source.Repo == "" {
		return ErrMissingSourceRepo
	}

	return nil
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Repo: %s, Output: %s, Workers: %d, MaxAttempts: %d}",
		c.Source.Repo,
		c.Output.Dir,
		c.Workers,
		c.Retry.MaxAttempts,
	)
}

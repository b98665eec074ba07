// Package config loads and saves fossil scan configuration.
//
// Configuration is resolved from the first source that exists:
// an explicit path, .fossilrc.yml in the working directory,
// .fossilrc.yml in the home directory, then built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file fossil looks for in the working
// and home directories.
const FileName = ".fossilrc.yml"

// DefaultMaxFileSize is the per-file size ceiling when the config
// does not set one.
const DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB

// Config represents the fossil scan configuration loaded from YAML.
type Config struct {
	// Markers are the debt keywords to search for
	Markers []string `yaml:"markers"`

	// IgnoredDirs are directory names or glob patterns that are
	// pruned from the walk entirely
	IgnoredDirs []string `yaml:"ignored_dirs"`

	// ContextLines is how many lines to capture before and after
	// each marker
	ContextLines int `yaml:"context_lines"`

	// MaxFileSize is the per-file size ceiling in bytes; larger
	// files are skipped with a warning
	MaxFileSize int64 `yaml:"max_file_size"`

	// Workers bounds the scan worker pool. Zero means one worker
	// per CPU.
	Workers int `yaml:"workers,omitempty"`

	// BlameTimeout caps a single history query, e.g. "30s".
	// On timeout the file's markers are reported without history.
	BlameTimeout string `yaml:"blame_timeout,omitempty"`

	// Severity maps marker types to user-defined labels. Carried
	// through to reports, never interpreted by the scanner.
	Severity map[string]string `yaml:"severity,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Markers: []string{"TODO", "FIXME", "HACK", "XXX", "NOTE"},
		IgnoredDirs: []string{
			".git",
			"node_modules",
			"vendor",
			"target",
			"dist",
			"build",
			"venv",
			".venv",
			"__pycache__",
			".pytest_cache",
			"coverage",
			".next",
		},
		ContextLines: 2,
		MaxFileSize:  DefaultMaxFileSize,
		BlameTimeout: "30s",
	}
}

// Load resolves the configuration. If customPath is non-empty it is
// used exclusively and a load failure is an error. Otherwise the
// working directory and home directory are tried in order, falling
// back to Default. Unreadable candidates in the search path are
// skipped, not fatal.
func Load(customPath string) (*Config, error) {
	if customPath != "" {
		cfg, err := loadFile(customPath)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", customPath, err)
		}
		return cfg, nil
	}

	if cfg, err := loadFile(FileName); err == nil {
		return cfg, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		if cfg, err := loadFile(filepath.Join(home, FileName)); err == nil {
			return cfg, nil
		}
	}

	return Default(), nil
}

// loadFile reads and parses a single config file, filling unset
// fields from defaults.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with built-in defaults so a
// partial config file behaves sensibly.
func (c *Config) applyDefaults() {
	def := Default()
	if len(c.Markers) == 0 {
		c.Markers = def.Markers
	}
	if len(c.IgnoredDirs) == 0 {
		c.IgnoredDirs = def.IgnoredDirs
	}
	if c.ContextLines == 0 {
		c.ContextLines = def.ContextLines
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = def.MaxFileSize
	}
	if c.BlameTimeout == "" {
		c.BlameTimeout = def.BlameTimeout
	}
}

// Validate checks the configuration for values the scanner cannot use.
func (c *Config) Validate() error {
	if len(c.Markers) == 0 {
		return fmt.Errorf("at least one marker keyword is required")
	}
	if c.ContextLines < 0 {
		return fmt.Errorf("context_lines cannot be negative (got %d)", c.ContextLines)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size cannot be negative (got %d)", c.MaxFileSize)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative (got %d)", c.Workers)
	}
	if c.BlameTimeout != "" {
		if _, err := time.ParseDuration(c.BlameTimeout); err != nil {
			return fmt.Errorf("invalid blame_timeout %q: %w", c.BlameTimeout, err)
		}
	}
	return nil
}

// WorkerCount returns the effective worker pool size.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// BlameTimeoutDuration returns the parsed blame timeout. Validate
// has already rejected malformed values.
func (c *Config) BlameTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.BlameTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ParseAge parses an age threshold like "30d", "2w", "6m", or "1y"
// into a whole number of days. Months are 30 days, years 365.
func ParseAge(s string) (int, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid age %q: expected a number followed by d, w, m, or y", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", s, err)
	}
	if num < 0 {
		return 0, fmt.Errorf("invalid age %q: cannot be negative", s)
	}

	switch s[len(s)-1] {
	case 'd':
		return num, nil
	case 'w':
		return num * 7, nil
	case 'm':
		return num * 30, nil
	case 'y':
		return num * 365, nil
	default:
		return 0, fmt.Errorf("invalid age unit %q: use d, w, m, or y", s[len(s)-1:])
	}
}

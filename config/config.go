// Package config loads the daemon configuration file.
//
// The file is YAML. Every field has a sensible default, so an absent file
// is valid and yields a daemon that watches all containers on the local
// Docker socket.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"warden/monitor"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// Monitoring cadence and policy.
	PollInterval         time.Duration `yaml:"poll_interval"`
	UnhealthyThreshold   int           `yaml:"unhealthy_threshold"`
	MaxRestartsPerWindow int           `yaml:"max_restarts_per_window"`
	WindowDuration       time.Duration `yaml:"window_duration"`
	RuntimeTimeout       time.Duration `yaml:"runtime_timeout"`
	MaxConcurrentRestarts int          `yaml:"max_concurrent_restarts"`

	// Socket is the unix socket the status API listens on.
	Socket string `yaml:"socket"`

	// JournalPath is the SQLite event journal location. Empty disables
	// the journal.
	JournalPath string `yaml:"journal_path"`
	JournalKeep int    `yaml:"journal_keep"`

	// ComposeFile scopes monitoring to one compose project. Empty means
	// every container on the host is watched.
	ComposeFile string `yaml:"compose_file"`

	// OTLPEndpoint enables trace export when set, e.g. "localhost:4318".
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// NTPCheck enables the background clock-drift probe.
	NTPCheck bool   `yaml:"ntp_check"`
	NTPPool  string `yaml:"ntp_pool"`

	LogLevel string `yaml:"log_level"`
}

// DefaultSocket returns the platform default for the status API socket.
func DefaultSocket() string {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support", "warden", "wardend.sock")
		}
	}
	return "/run/warden/wardend.sock"
}

// DefaultJournalPath returns the platform default for the event journal.
func DefaultJournalPath() string {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support", "warden", "journal.db")
		}
	}
	return "/var/lib/warden/journal.db"
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		PollInterval:          monitor.DefaultPollInterval,
		UnhealthyThreshold:    monitor.DefaultUnhealthyThreshold,
		MaxRestartsPerWindow:  monitor.DefaultMaxRestartsPerWindow,
		WindowDuration:        monitor.DefaultWindowDuration,
		RuntimeTimeout:        monitor.DefaultRuntimeTimeout,
		MaxConcurrentRestarts: monitor.DefaultMaxConcurrentRestarts,
		Socket:                DefaultSocket(),
		JournalPath:           DefaultJournalPath(),
		LogLevel:              "info",
	}
}

// Load reads the config file at path. A missing file is not an error when
// path is empty; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	if c.UnhealthyThreshold < 0 {
		return fmt.Errorf("unhealthy_threshold must not be negative")
	}
	if c.MaxRestartsPerWindow < 0 {
		return fmt.Errorf("max_restarts_per_window must not be negative")
	}
	if c.WindowDuration < 0 {
		return fmt.Errorf("window_duration must not be negative")
	}
	if c.RuntimeTimeout < 0 {
		return fmt.Errorf("runtime_timeout must not be negative")
	}
	if c.MaxConcurrentRestarts < 0 {
		return fmt.Errorf("max_concurrent_restarts must not be negative")
	}
	if c.Socket == "" {
		return fmt.Errorf("socket must not be empty")
	}
	return nil
}

// Monitor converts the daemon config to the monitor loop's config.
func (c *Config) Monitor() monitor.Config {
	return monitor.Config{
		PollInterval:          c.PollInterval,
		UnhealthyThreshold:    c.UnhealthyThreshold,
		MaxRestartsPerWindow:  c.MaxRestartsPerWindow,
		WindowDuration:        c.WindowDuration,
		RuntimeTimeout:        c.RuntimeTimeout,
		MaxConcurrentRestarts: c.MaxConcurrentRestarts,
	}
}

package monitor

import (
	"fmt"
	"time"
)

const (
	// DefaultPollInterval balances detection latency against Docker API load.
	DefaultPollInterval = 10 * time.Second
	// DefaultUnhealthyThreshold is 3 consecutive unhealthy cycles before
	// acting, debouncing transient blips.
	DefaultUnhealthyThreshold = 3
	// DefaultMaxRestartsPerWindow caps automatic restarts per container
	// inside the rolling window, so a crash-looping container degrades to
	// alert-only instead of a restart storm.
	DefaultMaxRestartsPerWindow = 3
	// DefaultWindowDuration is the rolling window for the restart budget.
	DefaultWindowDuration = 10 * time.Minute
	// DefaultRuntimeTimeout bounds every single runtime call so a stalled
	// Docker socket cannot wedge the loop.
	DefaultRuntimeTimeout = 10 * time.Second
	// DefaultMaxConcurrentRestarts bounds parallel restart dispatch within
	// one cycle.
	DefaultMaxConcurrentRestarts = 4
)

// Config holds the monitor loop and policy knobs.
type Config struct {
	PollInterval          time.Duration
	UnhealthyThreshold    int
	MaxRestartsPerWindow  int
	WindowDuration        time.Duration
	RuntimeTimeout        time.Duration
	MaxConcurrentRestarts int
}

// Normalize fills zero values with defaults and rejects invalid settings.
// An error here is fatal at startup.
func (c Config) Normalize() (Config, error) {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.UnhealthyThreshold == 0 {
		c.UnhealthyThreshold = DefaultUnhealthyThreshold
	}
	if c.MaxRestartsPerWindow == 0 {
		c.MaxRestartsPerWindow = DefaultMaxRestartsPerWindow
	}
	if c.WindowDuration == 0 {
		c.WindowDuration = DefaultWindowDuration
	}
	if c.RuntimeTimeout == 0 {
		c.RuntimeTimeout = DefaultRuntimeTimeout
	}
	if c.MaxConcurrentRestarts == 0 {
		c.MaxConcurrentRestarts = DefaultMaxConcurrentRestarts
	}

	if c.PollInterval < 0 {
		return Config{}, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.UnhealthyThreshold < 0 {
		return Config{}, fmt.Errorf("unhealthy threshold must be positive, got %d", c.UnhealthyThreshold)
	}
	if c.MaxRestartsPerWindow < 0 {
		return Config{}, fmt.Errorf("max restarts per window must be positive, got %d", c.MaxRestartsPerWindow)
	}
	if c.WindowDuration < 0 {
		return Config{}, fmt.Errorf("window duration must be positive, got %s", c.WindowDuration)
	}
	if c.RuntimeTimeout < 0 {
		return Config{}, fmt.Errorf("runtime timeout must be positive, got %s", c.RuntimeTimeout)
	}
	if c.MaxConcurrentRestarts < 0 {
		return Config{}, fmt.Errorf("max concurrent restarts must be positive, got %d", c.MaxConcurrentRestarts)
	}
	return c, nil
}

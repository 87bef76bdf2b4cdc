// Package ntpcheck watches local clock offset against an NTP pool. The
// restart budget window is wall-clock based, so a drifting clock silently
// shrinks or stretches the budget; the checker surfaces that condition.
package ntpcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"warden/monitor"

	"github.com/beevik/ntp"
)

const (
	DefaultPool      = "pool.ntp.org"
	DefaultInterval  = 15 * time.Minute
	DefaultThreshold = 500 * time.Millisecond
)

type Phase uint8

const (
	PhaseUnchecked Phase = iota + 1
	PhaseHealthy
	PhaseDrifting
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUnchecked:
		return "unchecked"
	case PhaseHealthy:
		return "healthy"
	case PhaseDrifting:
		return "drifting"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the result of the most recent probe.
type Status struct {
	Offset    time.Duration
	Phase     Phase
	Error     string
	CheckedAt time.Time
}

// Checker periodically queries an NTP pool and records the clock offset.
type Checker struct {
	mu        sync.RWMutex
	status    Status
	pool      string
	interval  time.Duration
	threshold time.Duration
	clock     monitor.Clock

	// CheckFunc replaces the NTP query in tests.
	CheckFunc func() Status
}

type Option func(*Checker)

func WithPool(pool string) Option {
	return func(c *Checker) {
		if pool != "" {
			c.pool = pool
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithClock(clock monitor.Clock) Option {
	return func(c *Checker) { c.clock = clock }
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		pool:      DefaultPool,
		interval:  DefaultInterval,
		threshold: DefaultThreshold,
		status:    Status{Phase: PhaseUnchecked},
		clock:     monitor.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run probes once immediately, then on every interval tick until the
// context is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.check()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check()
		}
	}
}

func (c *Checker) check() {
	if c.CheckFunc != nil {
		c.mu.Lock()
		c.status = c.CheckFunc()
		c.mu.Unlock()
		return
	}

	resp, err := ntp.Query(c.pool)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if err != nil {
		c.status = Status{Error: err.Error(), Phase: PhaseError, CheckedAt: now}
		return
	}

	phase := PhaseDrifting
	if resp.ClockOffset.Abs() < c.threshold {
		phase = PhaseHealthy
	} else {
		slog.Warn("Clock offset exceeds threshold; restart window accounting may be skewed.",
			"offset", resp.ClockOffset, "threshold", c.threshold)
	}
	c.status = Status{Offset: resp.ClockOffset, Phase: phase, CheckedAt: now}
}

// Status returns the most recent probe result.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

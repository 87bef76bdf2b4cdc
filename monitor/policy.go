package monitor

import (
	"fmt"
	"time"

	"warden"
)

// Action is what the policy wants done about a container.
type Action uint8

const (
	ActionNone Action = iota
	ActionRestart
	ActionAlertOnly
)

func (a Action) String() string {
	switch a {
	case ActionRestart:
		return "restart"
	case ActionAlertOnly:
		return "alert_only"
	default:
		return "none"
	}
}

// Decision is the policy verdict for one container on one cycle. Consumed
// by the loop immediately and discarded.
type Decision struct {
	ContainerID string
	Action      Action
	Reason      string
}

// Overrides supplies per-container policy tuning derived from deployment
// metadata (e.g. compose service extensions), matched on container labels.
type Overrides interface {
	ThresholdFor(labels map[string]string) (int, bool)
}

// Policy translates tracked state into an action, enforcing the unhealthy
// debounce and the rolling restart budget.
type Policy struct {
	cfg       Config
	overrides Overrides
}

type PolicyOption func(*Policy)

// WithOverrides installs per-container threshold overrides.
func WithOverrides(o Overrides) PolicyOption {
	return func(p *Policy) { p.overrides = o }
}

func NewPolicy(cfg Config, opts ...PolicyOption) *Policy {
	p := &Policy{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide applies the rules in order: healthy containers need nothing;
// unhealthy streaks below the threshold are debounced; an exhausted restart
// budget degrades to alert-only; otherwise restart. Expired window entries
// are discarded before the budget check.
func (p *Policy) Decide(s *ContainerState, now time.Time) Decision {
	if s.Status == warden.CompositeHealthy {
		return Decision{ContainerID: s.ID, Action: ActionNone, Reason: "healthy"}
	}

	threshold := p.cfg.UnhealthyThreshold
	if p.overrides != nil {
		if v, ok := p.overrides.ThresholdFor(s.Labels); ok && v > 0 {
			threshold = v
		}
	}

	if s.ConsecutiveUnhealthy < threshold {
		return Decision{
			ContainerID: s.ID,
			Action:      ActionNone,
			Reason: fmt.Sprintf("unhealthy %d/%d cycles, debouncing",
				s.ConsecutiveUnhealthy, threshold),
		}
	}

	if s.attemptsInWindow(now, p.cfg.WindowDuration) >= p.cfg.MaxRestartsPerWindow {
		return Decision{
			ContainerID: s.ID,
			Action:      ActionAlertOnly,
			Reason:      "restart budget exhausted",
		}
	}

	return Decision{
		ContainerID: s.ID,
		Action:      ActionRestart,
		Reason: fmt.Sprintf("unhealthy for %d consecutive cycles",
			s.ConsecutiveUnhealthy),
	}
}

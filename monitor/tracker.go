package monitor

import (
	"time"

	"warden"
)

// ContainerState is the tracked history for one container. Owned exclusively
// by the Tracker; mutated only from the monitor loop goroutine.
type ContainerState struct {
	ID                   string
	Name                 string
	Labels               map[string]string
	Status               warden.CompositeStatus
	ConsecutiveUnhealthy int
	LastTransitionAt     time.Time
	LastActionAt         time.Time

	// restartAttempts is the sliding window of restart attempt times.
	// Entries older than the window duration are pruned before the budget
	// check.
	restartAttempts []time.Time

	// pendingRemoval is set when the container was missing from the latest
	// full observation set. Missing again next cycle deletes the entry, so a
	// single runtime hiccup doesn't drop history.
	pendingRemoval bool
}

// attemptsInWindow prunes expired attempts and returns how many remain.
func (s *ContainerState) attemptsInWindow(now time.Time, window time.Duration) int {
	kept := s.restartAttempts[:0]
	for _, at := range s.restartAttempts {
		if now.Sub(at) < window {
			kept = append(kept, at)
		}
	}
	s.restartAttempts = kept
	return len(kept)
}

// Tracker converts a stream of observations into per-container state.
// Exactly one ContainerState per tracked id at any time.
type Tracker struct {
	states map[string]*ContainerState
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*ContainerState)}
}

// Observe folds one observation into tracked state and reports whether a
// health boundary was crossed. A container first seen unhealthy counts as a
// transition so operators hear about it even when no action follows yet.
func (t *Tracker) Observe(obs warden.ContainerObservation) bool {
	next := warden.Composite(obs.RuntimeStatus, obs.HealthStatus)

	s, ok := t.states[obs.ID]
	if !ok {
		s = &ContainerState{
			ID:               obs.ID,
			Name:             obs.Name,
			Labels:           obs.Labels,
			Status:           next,
			LastTransitionAt: obs.ObservedAt,
		}
		if next == warden.CompositeUnhealthy {
			s.ConsecutiveUnhealthy = 1
		}
		t.states[obs.ID] = s
		return next == warden.CompositeUnhealthy
	}

	s.Name = obs.Name
	s.Labels = obs.Labels
	s.pendingRemoval = false

	if next == s.Status {
		if next == warden.CompositeUnhealthy {
			s.ConsecutiveUnhealthy++
		}
		return false
	}

	s.Status = next
	s.LastTransitionAt = obs.ObservedAt
	if next == warden.CompositeUnhealthy {
		s.ConsecutiveUnhealthy = 1
	} else {
		s.ConsecutiveUnhealthy = 0
	}
	return true
}

// SweepMissing garbage-collects containers absent from the latest full
// observation set. First absence marks the entry; a second consecutive
// absence deletes it. Returns the ids removed this sweep.
func (t *Tracker) SweepMissing(seen map[string]struct{}) []string {
	var removed []string
	for id, s := range t.states {
		if _, ok := seen[id]; ok {
			continue
		}
		if s.pendingRemoval {
			delete(t.states, id)
			removed = append(removed, id)
			continue
		}
		s.pendingRemoval = true
	}
	return removed
}

// NoteRestartAttempt records a restart dispatch against the budget window
// and resets the unhealthy debounce counter. Called for every attempt,
// successful or not — a failed restart still consumes budget.
func (t *Tracker) NoteRestartAttempt(id string, now time.Time) {
	s, ok := t.states[id]
	if !ok {
		return
	}
	s.restartAttempts = append(s.restartAttempts, now)
	s.LastActionAt = now
	s.ConsecutiveUnhealthy = 0
}

// Get returns the tracked state for id, or nil.
func (t *Tracker) Get(id string) *ContainerState {
	return t.states[id]
}

// States returns the tracked states for iteration. The returned pointers
// share the Tracker's ownership; callers outside the loop goroutine must
// copy via Loop.Snapshot instead.
func (t *Tracker) States() []*ContainerState {
	out := make([]*ContainerState, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, s)
	}
	return out
}

// Len reports how many containers are currently tracked.
func (t *Tracker) Len() int { return len(t.states) }

// Package monitor is the health-monitoring core: it polls the container
// runtime, tracks per-container health history, and restarts unhealthy
// containers under a debounce and restart-budget policy.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"warden"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Loop drives periodic observation and action dispatch. All tracker and
// policy access happens on the loop goroutine; only restart calls and event
// emission fan out.
type Loop struct {
	cfg     Config
	runtime ContainerRuntime
	tracker *Tracker
	policy  *Policy
	sink    EventSink
	clock   Clock
	tracer  trace.Tracer
	wake    <-chan struct{}

	mu         sync.RWMutex
	snapshot   Status
	cycleCount uint64
}

// Status is a point-in-time view of the monitor for the status API.
type Status struct {
	Cycles      uint64
	LastCycleAt time.Time
	LastError   string
	Containers  []ContainerSnapshot
}

// ContainerSnapshot is a copy of one tracked container's state.
type ContainerSnapshot struct {
	ID                   string
	Name                 string
	Status               warden.CompositeStatus
	ConsecutiveUnhealthy int
	LastTransitionAt     time.Time
	LastActionAt         time.Time
	RestartsInWindow     int
}

type LoopOption func(*Loop)

// WithClock substitutes the wall clock, for deterministic tests.
func WithClock(c Clock) LoopOption {
	return func(l *Loop) { l.clock = c }
}

// WithTracer records a span per monitoring cycle.
func WithTracer(t trace.Tracer) LoopOption {
	return func(l *Loop) { l.tracer = t }
}

// WithWake runs an extra cycle whenever the channel signals, on top of the
// fixed interval. Used for runtime event subscriptions.
func WithWake(ch <-chan struct{}) LoopOption {
	return func(l *Loop) { l.wake = ch }
}

// WithPolicyOverrides installs per-container policy tuning.
func WithPolicyOverrides(o Overrides) LoopOption {
	return func(l *Loop) { l.policy = NewPolicy(l.cfg, WithOverrides(o)) }
}

// New creates a monitor loop. cfg must already be normalized.
func New(cfg Config, runtime ContainerRuntime, sink EventSink, opts ...LoopOption) (*Loop, error) {
	if runtime == nil {
		return nil, fmt.Errorf("new monitor: container runtime is required")
	}
	if sink == nil {
		sink = LogSink{}
	}
	l := &Loop{
		cfg:     cfg,
		runtime: runtime,
		tracker: NewTracker(),
		policy:  NewPolicy(cfg),
		sink:    sink,
		clock:   RealClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run polls on the configured interval until ctx is cancelled. An in-flight
// cycle finishes before Run returns; no new actions are issued after
// cancellation. Returns nil on graceful shutdown.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("Starting monitor loop.", "interval", l.cfg.PollInterval)

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	l.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Monitor loop stopped.")
			return nil
		case <-ticker.C:
			l.runCycle(ctx)
		case <-l.wake:
			l.runCycle(ctx)
		}
	}
}

// Snapshot returns the view published at the end of the last cycle.
func (l *Loop) Snapshot() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := l.snapshot
	out.Containers = make([]ContainerSnapshot, len(l.snapshot.Containers))
	copy(out.Containers, l.snapshot.Containers)
	return out
}

func (l *Loop) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := l.clock.Now()

	var span trace.Span
	if l.tracer != nil {
		ctx, span = l.tracer.Start(ctx, "monitor.cycle")
		defer span.End()
	}

	obsCtx, cancel := context.WithTimeout(ctx, l.cfg.RuntimeTimeout)
	observations, err := l.runtime.ListContainers(obsCtx)
	cancel()
	if err != nil {
		// Transient runtime failure: report it, skip the cycle, keep state
		// untouched so tracking resumes cleanly on the next good list.
		detail := fmt.Sprintf("list containers: %v", err)
		l.sink.Emit(warden.Event{Kind: warden.EventActionFailed, Detail: detail, At: now})
		l.publish(now, detail)
		if span != nil {
			span.RecordError(err)
		}
		return
	}

	seen := make(map[string]struct{}, len(observations))
	for _, obs := range observations {
		seen[obs.ID] = struct{}{}
		if l.tracker.Observe(obs) {
			s := l.tracker.Get(obs.ID)
			l.sink.Emit(warden.Event{
				ContainerID:   obs.ID,
				ContainerName: obs.Name,
				Kind:          warden.EventTransition,
				Detail:        fmt.Sprintf("status is now %s", s.Status),
				At:            now,
			})
		}
	}
	for _, id := range l.tracker.SweepMissing(seen) {
		slog.Debug("container no longer tracked", "id", shortID(id))
	}

	var restarts []*ContainerState
	for _, s := range l.tracker.States() {
		d := l.policy.Decide(s, now)
		switch d.Action {
		case ActionRestart:
			restarts = append(restarts, s)
		case ActionAlertOnly:
			l.sink.Emit(warden.Event{
				ContainerID:   s.ID,
				ContainerName: s.Name,
				Kind:          warden.EventActionTaken,
				Detail:        "alert only: " + d.Reason,
				At:            now,
			})
		}
	}

	// Attempts are recorded before dispatch so a failed restart still
	// consumes budget. Dispatch itself fans out; tracker mutation stays on
	// this goroutine.
	restarted := 0
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(l.cfg.MaxConcurrentRestarts)
	for _, s := range restarts {
		l.tracker.NoteRestartAttempt(s.ID, now)
		restarted++
		id, name := s.ID, s.Name
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(gctx, l.cfg.RuntimeTimeout)
			defer cancel()
			if err := l.runtime.RestartContainer(rctx, id); err != nil {
				l.sink.Emit(warden.Event{
					ContainerID:   id,
					ContainerName: name,
					Kind:          warden.EventActionFailed,
					Detail:        fmt.Sprintf("restart failed: %v", err),
					At:            now,
				})
				return nil
			}
			l.sink.Emit(warden.Event{
				ContainerID:   id,
				ContainerName: name,
				Kind:          warden.EventActionTaken,
				Detail:        "restarted",
				At:            now,
			})
			return nil
		})
	}
	_ = g.Wait()

	if span != nil {
		span.SetAttributes(
			attribute.Int("containers.observed", len(observations)),
			attribute.Int("containers.tracked", l.tracker.Len()),
			attribute.Int("containers.restarted", restarted),
		)
	}
	l.publish(now, "")
}

// publish refreshes the snapshot served to the status API.
func (l *Loop) publish(now time.Time, lastErr string) {
	containers := make([]ContainerSnapshot, 0, l.tracker.Len())
	for _, s := range l.tracker.States() {
		containers = append(containers, ContainerSnapshot{
			ID:                   s.ID,
			Name:                 s.Name,
			Status:               s.Status,
			ConsecutiveUnhealthy: s.ConsecutiveUnhealthy,
			LastTransitionAt:     s.LastTransitionAt,
			LastActionAt:         s.LastActionAt,
			RestartsInWindow:     s.attemptsInWindow(now, l.cfg.WindowDuration),
		})
	}

	l.mu.Lock()
	l.cycleCount++
	l.snapshot = Status{
		Cycles:      l.cycleCount,
		LastCycleAt: now,
		LastError:   lastErr,
		Containers:  containers,
	}
	l.mu.Unlock()
}

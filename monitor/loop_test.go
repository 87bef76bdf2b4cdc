package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"warden"
)

// --- fakes ---

type fakeRuntime struct {
	mu           sync.Mutex
	observations []warden.ContainerObservation
	listErr      error
	listCalls    int
	restarts     []string
	restartErr   error
}

func (f *fakeRuntime) ListContainers(context.Context) ([]warden.ContainerObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]warden.ContainerObservation, len(f.observations))
	copy(out, f.observations)
	return out, nil
}

func (f *fakeRuntime) RestartContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts = append(f.restarts, id)
	return f.restartErr
}

func (f *fakeRuntime) restartCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.restarts)
}

type fakeSink struct {
	mu     sync.Mutex
	events []warden.Event
}

func (f *fakeSink) Emit(ev warden.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeSink) byKind(kind warden.EventKind) []warden.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []warden.Event
	for _, ev := range f.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// --- helpers ---

func newTestLoop(t *testing.T, rt *fakeRuntime, sink *fakeSink, clock *fakeClock) *Loop {
	t.Helper()
	cfg, err := Config{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	l, err := New(cfg, rt, sink, WithClock(clock))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

func unhealthy(id string) warden.ContainerObservation {
	return warden.ContainerObservation{
		ID: id, Name: "svc-" + id,
		RuntimeStatus: warden.StatusRunning,
		HealthStatus:  warden.HealthUnhealthy,
	}
}

func healthy(id string) warden.ContainerObservation {
	return warden.ContainerObservation{
		ID: id, Name: "svc-" + id,
		RuntimeStatus: warden.StatusRunning,
		HealthStatus:  warden.HealthHealthy,
	}
}

// --- tests ---

// Threshold 3, observations unhealthy at t=0, 10, 20 seconds: the restart
// fires on the boundary cycle at t=20, not earlier, and the debounce
// counter reaccumulates after the action so t=30 dispatches nothing.
func TestRestartFiresOnThresholdBoundary(t *testing.T) {
	rt := &fakeRuntime{observations: []warden.ContainerObservation{unhealthy("a")}}
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLoop(t, rt, sink, clock)
	ctx := context.Background()

	l.runCycle(ctx) // t=0
	clock.advance(10 * time.Second)
	l.runCycle(ctx) // t=10
	if got := rt.restartCount(); got != 0 {
		t.Fatalf("restarts before threshold = %d, want 0", got)
	}

	clock.advance(10 * time.Second)
	l.runCycle(ctx) // t=20: third consecutive unhealthy
	if got := rt.restartCount(); got != 1 {
		t.Fatalf("restarts at threshold = %d, want 1", got)
	}

	clock.advance(10 * time.Second)
	l.runCycle(ctx) // t=30: counter reset by the action, debouncing again
	if got := rt.restartCount(); got != 1 {
		t.Errorf("restarts after action reset = %d, want still 1", got)
	}

	if got := sink.byKind(warden.EventActionTaken); len(got) != 1 || got[0].Detail != "restarted" {
		t.Errorf("action events = %+v, want one restarted event", got)
	}
}

// No more than MaxRestartsPerWindow restarts inside a rolling window; once
// the budget is spent the container degrades to alert-only, and budget
// returns as attempts age out.
func TestRestartBudgetWindow(t *testing.T) {
	rt := &fakeRuntime{observations: []warden.ContainerObservation{unhealthy("a")}}
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLoop(t, rt, sink, clock)
	ctx := context.Background()

	// Run enough 10s cycles to cover a full window: every third unhealthy
	// cycle is restart-eligible.
	cycles := int(DefaultWindowDuration/(10*time.Second)) - 1
	for range cycles {
		l.runCycle(ctx)
		clock.advance(10 * time.Second)
	}
	if got := rt.restartCount(); got != DefaultMaxRestartsPerWindow {
		t.Fatalf("restarts within window = %d, want %d", got, DefaultMaxRestartsPerWindow)
	}
	if got := sink.byKind(warden.EventActionTaken); len(got) <= DefaultMaxRestartsPerWindow {
		t.Errorf("expected alert-only events once budget spent, got %d action events", len(got))
	}

	// Let the window slide past the early attempts: restarts resume.
	clock.advance(DefaultWindowDuration)
	for range 3 {
		l.runCycle(ctx)
		clock.advance(10 * time.Second)
	}
	if got := rt.restartCount(); got != DefaultMaxRestartsPerWindow+1 {
		t.Errorf("restarts after window slid = %d, want %d", got, DefaultMaxRestartsPerWindow+1)
	}
}

// A runtime outage skips cycles without mutating state; tracking resumes
// from the next good observation.
func TestRuntimeUnavailableSkipsCycle(t *testing.T) {
	rt := &fakeRuntime{observations: []warden.ContainerObservation{unhealthy("a")}}
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLoop(t, rt, sink, clock)
	ctx := context.Background()

	l.runCycle(ctx) // t=0: unhealthy #1
	clock.advance(10 * time.Second)
	l.runCycle(ctx) // t=10: unhealthy #2

	rt.mu.Lock()
	rt.listErr = ErrRuntimeUnavailable
	rt.mu.Unlock()
	for range 3 {
		clock.advance(10 * time.Second)
		l.runCycle(ctx)
	}
	if got := rt.restartCount(); got != 0 {
		t.Fatalf("restarts during outage = %d, want 0", got)
	}
	if got := len(sink.byKind(warden.EventActionFailed)); got != 3 {
		t.Fatalf("failure events during outage = %d, want 3", got)
	}
	if got := l.tracker.Get("a").ConsecutiveUnhealthy; got != 2 {
		t.Fatalf("ConsecutiveUnhealthy during outage = %d, want 2 (untouched)", got)
	}

	rt.mu.Lock()
	rt.listErr = nil
	rt.mu.Unlock()
	clock.advance(10 * time.Second)
	l.runCycle(ctx) // recovery: unhealthy #3 → restart
	if got := rt.restartCount(); got != 1 {
		t.Errorf("restarts after recovery = %d, want 1", got)
	}
}

// A failed restart still consumes restart budget.
func TestFailedRestartConsumesBudget(t *testing.T) {
	rt := &fakeRuntime{
		observations: []warden.ContainerObservation{unhealthy("a")},
		restartErr:   errors.New("engine said no"),
	}
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLoop(t, rt, sink, clock)
	ctx := context.Background()

	cycles := int(DefaultWindowDuration/(10*time.Second)) - 1
	for range cycles {
		l.runCycle(ctx)
		clock.advance(10 * time.Second)
	}

	if got := rt.restartCount(); got != DefaultMaxRestartsPerWindow {
		t.Errorf("restart attempts = %d, want %d (failures still consume budget)", got, DefaultMaxRestartsPerWindow)
	}
	if got := len(sink.byKind(warden.EventActionTaken)); got == 0 {
		t.Error("expected alert-only events after failed attempts exhausted budget")
	}
	failed := sink.byKind(warden.EventActionFailed)
	if len(failed) != DefaultMaxRestartsPerWindow {
		t.Errorf("failure events = %d, want %d", len(failed), DefaultMaxRestartsPerWindow)
	}
}

func TestTransitionEventsEmitted(t *testing.T) {
	rt := &fakeRuntime{observations: []warden.ContainerObservation{healthy("a")}}
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLoop(t, rt, sink, clock)
	ctx := context.Background()

	l.runCycle(ctx)
	rt.mu.Lock()
	rt.observations = []warden.ContainerObservation{unhealthy("a")}
	rt.mu.Unlock()
	clock.advance(10 * time.Second)
	l.runCycle(ctx)

	transitions := sink.byKind(warden.EventTransition)
	if len(transitions) != 1 {
		t.Fatalf("transition events = %d, want 1", len(transitions))
	}
	if transitions[0].ContainerName != "svc-a" {
		t.Errorf("transition container = %q, want svc-a", transitions[0].ContainerName)
	}
}

func TestSnapshotReflectsTrackedState(t *testing.T) {
	rt := &fakeRuntime{observations: []warden.ContainerObservation{unhealthy("a"), healthy("b")}}
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLoop(t, rt, sink, clock)

	l.runCycle(context.Background())

	snap := l.Snapshot()
	if snap.Cycles != 1 {
		t.Errorf("Snapshot().Cycles = %d, want 1", snap.Cycles)
	}
	if len(snap.Containers) != 2 {
		t.Fatalf("Snapshot().Containers = %d entries, want 2", len(snap.Containers))
	}
	byID := map[string]ContainerSnapshot{}
	for _, c := range snap.Containers {
		byID[c.ID] = c
	}
	if byID["a"].Status != warden.CompositeUnhealthy || byID["a"].ConsecutiveUnhealthy != 1 {
		t.Errorf("snapshot for a = %+v, want unhealthy count 1", byID["a"])
	}
	if byID["b"].Status != warden.CompositeHealthy {
		t.Errorf("snapshot for b = %+v, want healthy", byID["b"])
	}
}

// Run honors cancellation at cycle boundaries and a wake signal triggers an
// immediate extra cycle between ticks.
func TestRunWakeAndShutdown(t *testing.T) {
	rt := &fakeRuntime{observations: []warden.ContainerObservation{healthy("a")}}
	sink := &fakeSink{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	cfg, err := Config{PollInterval: time.Hour}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	wake := make(chan struct{}, 1)
	l, err := New(cfg, rt, sink, WithClock(clock), WithWake(wake))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Initial cycle runs immediately; the wake signal forces a second one
	// long before the hour tick.
	deadline := time.After(2 * time.Second)
	for rt.listCallCount() < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for initial cycle")
		case <-time.After(time.Millisecond):
		}
	}
	wake <- struct{}{}
	for rt.listCallCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for wake cycle")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil on graceful shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func (f *fakeRuntime) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

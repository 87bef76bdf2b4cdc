package monitor

import (
	"context"
	"errors"
	"time"

	"warden"
)

// ErrRuntimeUnavailable marks a transient container runtime failure. A cycle
// that hits it is skipped and retried on the next tick; tracked state is not
// mutated.
var ErrRuntimeUnavailable = errors.New("container runtime unavailable")

// ContainerRuntime is the container engine capability the monitor consumes.
// In production this is the Docker Engine API; in tests it is a fake.
type ContainerRuntime interface {
	ListContainers(ctx context.Context) ([]warden.ContainerObservation, error)
	RestartContainer(ctx context.Context, id string) error
}

// EventSink receives monitor events. Delivery is best-effort — a sink must
// never block the monitor for long or panic.
type EventSink interface {
	Emit(ev warden.Event)
}

// Clock abstracts wall time so tracker and policy behavior is testable
// deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

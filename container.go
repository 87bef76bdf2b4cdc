package warden

import "time"

// RuntimeStatus is the container lifecycle state reported by the runtime.
type RuntimeStatus uint8

const (
	StatusUnknown RuntimeStatus = iota
	StatusRunning
	StatusExited
	StatusPaused
)

func (s RuntimeStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusExited:
		return "exited"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// HealthStatus is the health check result reported by the runtime.
// HealthNone means the container has no health check configured.
type HealthStatus uint8

const (
	HealthNone HealthStatus = iota
	HealthStarting
	HealthHealthy
	HealthUnhealthy
)

func (h HealthStatus) String() string {
	switch h {
	case HealthStarting:
		return "starting"
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "none"
	}
}

// CompositeStatus is the derived healthy/unhealthy classification combining
// lifecycle state and health check result.
type CompositeStatus uint8

const (
	CompositeHealthy CompositeStatus = iota + 1
	CompositeUnhealthy
)

func (c CompositeStatus) String() string {
	switch c {
	case CompositeHealthy:
		return "healthy"
	case CompositeUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Composite derives the overall classification. Exited and paused containers
// are unhealthy regardless of their last health check result. Running
// containers without a verdict yet (starting, or no health check at all)
// get the benefit of the doubt.
func Composite(rs RuntimeStatus, hs HealthStatus) CompositeStatus {
	switch rs {
	case StatusExited, StatusPaused, StatusUnknown:
		return CompositeUnhealthy
	}
	if hs == HealthUnhealthy {
		return CompositeUnhealthy
	}
	return CompositeHealthy
}

// ContainerObservation is a point-in-time view of one container, produced
// fresh on every poll. Immutable once created.
type ContainerObservation struct {
	ID            string
	Name          string
	Image         string
	RuntimeStatus RuntimeStatus
	HealthStatus  HealthStatus
	Labels        map[string]string
	ObservedAt    time.Time
}

package warden

import "time"

// EventKind describes what a monitor event reports.
type EventKind uint8

const (
	EventTransition EventKind = iota + 1
	EventActionTaken
	EventActionFailed
)

func (k EventKind) String() string {
	switch k {
	case EventTransition:
		return "transition"
	case EventActionTaken:
		return "action_taken"
	case EventActionFailed:
		return "action_failed"
	default:
		return "unknown"
	}
}

// Event is a single status transition or action outcome, sent to event
// sinks. Write-only from the monitor's perspective.
type Event struct {
	ContainerID   string
	ContainerName string
	Kind          EventKind
	Detail        string
	At            time.Time
}

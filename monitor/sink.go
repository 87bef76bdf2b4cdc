package monitor

import (
	"log/slog"

	"warden"
)

// LogSink writes events to the process logger.
type LogSink struct{}

func (LogSink) Emit(ev warden.Event) {
	log := slog.With("component", "monitor",
		"container", ev.ContainerName, "id", shortID(ev.ContainerID))
	switch ev.Kind {
	case warden.EventActionFailed:
		log.Warn(ev.Detail)
	default:
		log.Info(ev.Detail, "kind", ev.Kind.String())
	}
}

// Fanout delivers each event to every sink. A panicking sink is dropped from
// the event, not the process.
type Fanout []EventSink

func (f Fanout) Emit(ev warden.Event) {
	for _, s := range f {
		emitSafely(s, ev)
	}
}

func emitSafely(s EventSink, ev warden.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event sink panicked", "panic", r)
		}
	}()
	s.Emit(ev)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

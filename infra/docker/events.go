package docker

import (
	"context"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
)

// resubscribeDelay throttles event stream reconnects when the engine is
// flapping or down. Polling continues regardless.
const resubscribeDelay = 5 * time.Second

// WatchEvents subscribes to container lifecycle and health events and
// signals the returned channel whenever one arrives, so the monitor loop
// can run an extra cycle instead of waiting out the poll interval. The
// stream is best-effort: errors degrade to pure polling and the watcher
// keeps resubscribing until ctx is cancelled.
func (r *Runtime) WatchEvents(ctx context.Context) <-chan struct{} {
	wake := make(chan struct{}, 1)

	go func() {
		defer close(wake)
		for {
			if err := r.streamEvents(ctx, wake); err != nil {
				slog.Debug("docker event stream interrupted", "err", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
		}
	}()

	return wake
}

func (r *Runtime) streamEvents(ctx context.Context, wake chan<- struct{}) error {
	f := filters.NewArgs()
	f.Add("type", string(events.ContainerEventType))
	for _, action := range []string{"start", "die", "stop", "pause", "unpause", "health_status"} {
		f.Add("event", action)
	}

	msgs, errs := r.cli.Events(ctx, events.ListOptions{Filters: f})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case <-msgs:
			// Coalesce bursts: one pending wake is enough.
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

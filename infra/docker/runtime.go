// Package docker binds the monitor's container runtime port to the Docker
// Engine API.
package docker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden"
	"warden/monitor"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/client"
)

// dockerAPI is the slice of the Docker client the runtime needs. Narrow so
// tests can fake it.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	Ping(ctx context.Context) (types.Ping, error)
}

var _ monitor.ContainerRuntime = (*Runtime)(nil)

// Runtime implements monitor.ContainerRuntime using the Docker Engine API.
type Runtime struct {
	cli dockerAPI
}

// NewRuntime creates a Runtime with a new Docker client from the
// environment (DOCKER_HOST et al).
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Runtime{cli: cli}, nil
}

// NewRuntimeFromClient wraps an existing Docker client.
func NewRuntimeFromClient(cli client.APIClient) *Runtime {
	return &Runtime{cli: cli}
}

// WaitReady pings the Docker daemon until it answers or ctx expires. Used at
// startup, where an unreachable runtime is fatal.
func (r *Runtime) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		_, err := r.cli.Ping(ctx)
		if err == nil {
			return nil
		}
		if !client.IsErrConnectionFailed(err) {
			return fmt.Errorf("connect to docker daemon: %w", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect to docker daemon: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// ListContainers returns one observation per container, stopped ones
// included. Connection failures surface as ErrRuntimeUnavailable so the
// loop skips the cycle instead of mutating state.
func (r *Runtime) ListContainers(ctx context.Context) ([]warden.ContainerObservation, error) {
	summaries, err := r.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		if client.IsErrConnectionFailed(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", monitor.ErrRuntimeUnavailable, err)
		}
		return nil, fmt.Errorf("list containers: %w", err)
	}

	now := time.Now()
	out := make([]warden.ContainerObservation, 0, len(summaries))
	for _, c := range summaries {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		out = append(out, warden.ContainerObservation{
			ID:            c.ID,
			Name:          name,
			Image:         c.Image,
			RuntimeStatus: parseState(c.State),
			HealthStatus:  parseHealth(c.Status),
			Labels:        c.Labels,
			ObservedAt:    now,
		})
	}
	return out, nil
}

// RestartContainer restarts one container with the engine's default stop
// timeout.
func (r *Runtime) RestartContainer(ctx context.Context, id string) error {
	if err := r.cli.ContainerRestart(ctx, id, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("restart container %s: no longer exists", shortID(id))
		}
		if client.IsErrConnectionFailed(err) {
			return fmt.Errorf("%w: %v", monitor.ErrRuntimeUnavailable, err)
		}
		return fmt.Errorf("restart container %s: %w", shortID(id), err)
	}
	return nil
}

func parseState(state string) warden.RuntimeStatus {
	switch state {
	case "running", "restarting":
		return warden.StatusRunning
	case "paused":
		return warden.StatusPaused
	case "exited", "dead":
		return warden.StatusExited
	default:
		return warden.StatusUnknown
	}
}

// parseHealth reads the health verdict out of the human status line, e.g.
// "Up 2 hours (healthy)" or "Up 5 seconds (health: starting)". The list
// endpoint doesn't expose health any other way.
func parseHealth(status string) warden.HealthStatus {
	switch {
	case strings.Contains(status, "(healthy)"):
		return warden.HealthHealthy
	case strings.Contains(status, "(unhealthy)"):
		return warden.HealthUnhealthy
	case strings.Contains(status, "health: starting"):
		return warden.HealthStarting
	default:
		return warden.HealthNone
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

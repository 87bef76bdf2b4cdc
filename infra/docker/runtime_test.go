package docker

import (
	"context"
	"errors"
	"testing"

	"warden"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
)

type fakeDocker struct {
	summaries  []container.Summary
	listErr    error
	restarted  []string
	restartErr error
}

func (f *fakeDocker) ContainerList(context.Context, container.ListOptions) ([]container.Summary, error) {
	return f.summaries, f.listErr
}

func (f *fakeDocker) ContainerRestart(_ context.Context, id string, _ container.StopOptions) error {
	f.restarted = append(f.restarted, id)
	return f.restartErr
}

func (f *fakeDocker) Events(context.Context, events.ListOptions) (<-chan events.Message, <-chan error) {
	return nil, nil
}

func (f *fakeDocker) Ping(context.Context) (types.Ping, error) {
	return types.Ping{}, nil
}

func TestListContainersMapsObservations(t *testing.T) {
	fake := &fakeDocker{summaries: []container.Summary{
		{
			ID:     "aaaa1111",
			Names:  []string{"/web"},
			Image:  "nginx:latest",
			State:  "running",
			Status: "Up 2 hours (healthy)",
			Labels: map[string]string{"com.docker.compose.service": "web"},
		},
		{
			ID:     "bbbb2222",
			Names:  []string{"/db"},
			State:  "running",
			Status: "Up 10 seconds (health: starting)",
		},
		{
			ID:     "cccc3333",
			Names:  []string{"/worker"},
			State:  "exited",
			Status: "Exited (1) 3 minutes ago",
		},
		{
			ID:     "dddd4444",
			Names:  []string{"/cache"},
			State:  "running",
			Status: "Up 4 hours",
		},
	}}
	rt := &Runtime{cli: fake}

	obs, err := rt.ListContainers(context.Background())
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(obs) != 4 {
		t.Fatalf("ListContainers() = %d observations, want 4", len(obs))
	}

	want := []struct {
		name   string
		rs     warden.RuntimeStatus
		hs     warden.HealthStatus
	}{
		{"web", warden.StatusRunning, warden.HealthHealthy},
		{"db", warden.StatusRunning, warden.HealthStarting},
		{"worker", warden.StatusExited, warden.HealthNone},
		{"cache", warden.StatusRunning, warden.HealthNone},
	}
	for i, w := range want {
		if obs[i].Name != w.name {
			t.Errorf("obs[%d].Name = %q, want %q (slash stripped)", i, obs[i].Name, w.name)
		}
		if obs[i].RuntimeStatus != w.rs {
			t.Errorf("obs[%d].RuntimeStatus = %v, want %v", i, obs[i].RuntimeStatus, w.rs)
		}
		if obs[i].HealthStatus != w.hs {
			t.Errorf("obs[%d].HealthStatus = %v, want %v", i, obs[i].HealthStatus, w.hs)
		}
		if obs[i].ObservedAt.IsZero() {
			t.Errorf("obs[%d].ObservedAt is zero", i)
		}
	}
	if obs[0].Labels["com.docker.compose.service"] != "web" {
		t.Errorf("labels not carried through: %v", obs[0].Labels)
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		state string
		want  warden.RuntimeStatus
	}{
		{"running", warden.StatusRunning},
		{"restarting", warden.StatusRunning},
		{"paused", warden.StatusPaused},
		{"exited", warden.StatusExited},
		{"dead", warden.StatusExited},
		{"created", warden.StatusUnknown},
		{"", warden.StatusUnknown},
	}
	for _, tt := range tests {
		if got := parseState(tt.state); got != tt.want {
			t.Errorf("parseState(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRestartContainer(t *testing.T) {
	fake := &fakeDocker{}
	rt := &Runtime{cli: fake}

	if err := rt.RestartContainer(context.Background(), "aaaa1111"); err != nil {
		t.Fatalf("RestartContainer() error = %v", err)
	}
	if len(fake.restarted) != 1 || fake.restarted[0] != "aaaa1111" {
		t.Errorf("restarted = %v, want [aaaa1111]", fake.restarted)
	}

	fake.restartErr = errors.New("oom while stopping")
	if err := rt.RestartContainer(context.Background(), "aaaa1111"); err == nil {
		t.Error("RestartContainer() = nil, want error")
	}
}

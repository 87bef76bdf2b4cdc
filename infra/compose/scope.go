// Package compose scopes the monitor to one Docker Compose project and
// carries per-service monitoring overrides declared in the compose file.
package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"warden"
	"warden/monitor"

	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"
)

// Compose-managed containers carry these labels.
const (
	ProjectLabel = "com.docker.compose.project"
	ServiceLabel = "com.docker.compose.service"
)

// extensionKey is the compose service extension read for monitor overrides:
//
//	services:
//	  db:
//	    x-warden:
//	      unhealthy_threshold: 5
//	      disable: false
const extensionKey = "x-warden"

// ServiceOverride tunes monitoring for one compose service.
type ServiceOverride struct {
	UnhealthyThreshold int
	Disable            bool
}

// Scope restricts monitoring to one compose project.
type Scope struct {
	Project   string
	overrides map[string]ServiceOverride
}

// LoadScope parses a compose file and derives the project scope. The
// project name falls back to the file's directory name, matching what
// docker compose does without an explicit name.
func LoadScope(ctx context.Context, path string) (*Scope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read compose file: %w", err)
	}

	project, err := loader.LoadWithContext(ctx, composetypes.ConfigDetails{
		ConfigFiles: []composetypes.ConfigFile{
			{Filename: filepath.Base(path), Content: data},
		},
	}, func(o *loader.Options) {
		o.SetProjectName(projectNameFor(path), false)
		o.SkipValidation = true
	})
	if err != nil {
		return nil, fmt.Errorf("parse compose file: %w", err)
	}
	if len(project.Services) == 0 {
		return nil, fmt.Errorf("compose file has no services")
	}

	scope := &Scope{
		Project:   project.Name,
		overrides: make(map[string]ServiceOverride, len(project.Services)),
	}
	for name, svc := range project.Services {
		ov, ok, err := parseOverride(svc.Extensions)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", name, err)
		}
		if ok {
			scope.overrides[name] = ov
		}
	}
	return scope, nil
}

// ThresholdFor implements monitor.Overrides: compose services with an
// unhealthy_threshold override get it applied, everything else keeps the
// daemon default.
func (s *Scope) ThresholdFor(labels map[string]string) (int, bool) {
	if labels[ProjectLabel] != s.Project {
		return 0, false
	}
	ov, ok := s.overrides[labels[ServiceLabel]]
	if !ok || ov.UnhealthyThreshold <= 0 {
		return 0, false
	}
	return ov.UnhealthyThreshold, true
}

// Override returns the raw override for a service name.
func (s *Scope) Override(service string) (ServiceOverride, bool) {
	ov, ok := s.overrides[service]
	return ov, ok
}

var _ monitor.ContainerRuntime = (*ScopedRuntime)(nil)

// ScopedRuntime filters another runtime's observations down to the scoped
// project, dropping services whose monitoring is disabled.
type ScopedRuntime struct {
	inner monitor.ContainerRuntime
	scope *Scope
}

// WrapRuntime scopes a container runtime.
func (s *Scope) WrapRuntime(inner monitor.ContainerRuntime) *ScopedRuntime {
	return &ScopedRuntime{inner: inner, scope: s}
}

func (r *ScopedRuntime) ListContainers(ctx context.Context) ([]warden.ContainerObservation, error) {
	obs, err := r.inner.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	out := obs[:0]
	for _, o := range obs {
		if o.Labels[ProjectLabel] != r.scope.Project {
			continue
		}
		if ov, ok := r.scope.overrides[o.Labels[ServiceLabel]]; ok && ov.Disable {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *ScopedRuntime) RestartContainer(ctx context.Context, id string) error {
	return r.inner.RestartContainer(ctx, id)
}

func projectNameFor(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	name := strings.ToLower(filepath.Base(filepath.Dir(abs)))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "default"
	}
	return name
}

func parseOverride(ext composetypes.Extensions) (ServiceOverride, bool, error) {
	raw, ok := ext[extensionKey]
	if !ok {
		return ServiceOverride{}, false, nil
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return ServiceOverride{}, false, fmt.Errorf("%s must be a mapping", extensionKey)
	}

	var ov ServiceOverride
	for key, value := range fields {
		switch key {
		case "unhealthy_threshold":
			n, ok := toInt(value)
			if !ok || n <= 0 {
				return ServiceOverride{}, false, fmt.Errorf("%s.unhealthy_threshold must be a positive integer", extensionKey)
			}
			ov.UnhealthyThreshold = n
		case "disable":
			b, ok := value.(bool)
			if !ok {
				return ServiceOverride{}, false, fmt.Errorf("%s.disable must be a boolean", extensionKey)
			}
			ov.Disable = b
		default:
			return ServiceOverride{}, false, fmt.Errorf("%s: unknown key %q", extensionKey, key)
		}
	}
	return ov, true, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

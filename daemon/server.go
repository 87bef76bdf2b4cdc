package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"warden"
	"warden/infra/journal"
	"warden/internal/ntpcheck"
	"warden/monitor"
)

// SnapshotProvider is the interface the API server needs from the monitor.
type SnapshotProvider interface {
	Snapshot() monitor.Status
}

// StatusResponse is the GET /v1/status payload.
type StatusResponse struct {
	Version     string     `json:"version"`
	StartedAt   time.Time  `json:"started_at"`
	Cycles      uint64     `json:"cycles"`
	LastCycleAt time.Time  `json:"last_cycle_at"`
	LastError   string     `json:"last_error,omitempty"`
	Tracked     int        `json:"tracked"`
	NTP         *NTPStatus `json:"ntp,omitempty"`
}

// NTPStatus reports the clock-drift probe.
type NTPStatus struct {
	Phase     string    `json:"phase"`
	OffsetMS  int64     `json:"offset_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// ContainerResponse is one entry of the GET /v1/containers payload.
type ContainerResponse struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Status               string    `json:"status"`
	ConsecutiveUnhealthy int       `json:"consecutive_unhealthy"`
	LastTransitionAt     time.Time `json:"last_transition_at,omitzero"`
	LastActionAt         time.Time `json:"last_action_at,omitzero"`
	RestartsInWindow     int       `json:"restarts_in_window"`
}

// EventResponse is one entry of the GET /v1/events payload.
type EventResponse struct {
	ContainerID   string    `json:"container_id"`
	ContainerName string    `json:"container_name"`
	Kind          string    `json:"kind"`
	Detail        string    `json:"detail"`
	At            time.Time `json:"at"`
}

// Server exposes monitor state as JSON over a unix socket.
type Server struct {
	loop      SnapshotProvider
	journal   *journal.Store
	ntp       *ntpcheck.Checker
	startedAt time.Time
}

// NewServer builds the API server. journal and ntp may be nil when those
// subsystems are disabled.
func NewServer(loop SnapshotProvider, store *journal.Store, ntp *ntpcheck.Checker) *Server {
	return &Server{loop: loop, journal: store, ntp: ntp, startedAt: time.Now()}
}

// Handler returns the HTTP routes, exported for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/containers", s.handleContainers)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.loop.Snapshot()
	resp := StatusResponse{
		Version:     warden.Version,
		StartedAt:   s.startedAt,
		Cycles:      snap.Cycles,
		LastCycleAt: snap.LastCycleAt,
		LastError:   snap.LastError,
		Tracked:     len(snap.Containers),
	}
	if s.ntp != nil {
		st := s.ntp.Status()
		resp.NTP = &NTPStatus{
			Phase:     st.Phase.String(),
			OffsetMS:  st.Offset.Milliseconds(),
			Error:     st.Error,
			CheckedAt: st.CheckedAt,
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleContainers(w http.ResponseWriter, r *http.Request) {
	snap := s.loop.Snapshot()
	out := make([]ContainerResponse, 0, len(snap.Containers))
	for _, c := range snap.Containers {
		out = append(out, ContainerResponse{
			ID:                   c.ID,
			Name:                 c.Name,
			Status:               c.Status.String(),
			ConsecutiveUnhealthy: c.ConsecutiveUnhealthy,
			LastTransitionAt:     c.LastTransitionAt,
			LastActionAt:         c.LastActionAt,
			RestartsInWindow:     c.RestartsInWindow,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "event journal is disabled", http.StatusNotImplemented)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to read journal.", "err", err)
		http.Error(w, "journal read failed", http.StatusInternalServerError)
		return
	}
	out := make([]EventResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EventResponse{
			ContainerID:   e.ContainerID,
			ContainerName: e.ContainerName,
			Kind:          e.Kind,
			Detail:        e.Detail,
			At:            e.At,
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response write failed", "err", err)
	}
}

// ListenAndServe serves the API on a unix socket and blocks until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	// Remove stale socket from a previous run (may not exist).
	_ = os.Remove(socketPath)
	defer func() { _ = os.Remove(socketPath) }()

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", socketPath, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Shut down when ctx is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

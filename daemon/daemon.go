// Package daemon assembles the monitor and serves its state over a unix
// socket.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"warden/config"
	"warden/infra/compose"
	"warden/infra/docker"
	"warden/infra/journal"
	"warden/internal/ntpcheck"
	"warden/internal/telemetry"
	"warden/monitor"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
)

// pruneInterval is how often old journal rows are trimmed.
const pruneInterval = time.Hour

// Run wires the container runtime, journal, monitor loop, and status API
// together, then blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	mcfg, err := cfg.Monitor().Normalize()
	if err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}

	rt, err := docker.NewRuntime()
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	if err := rt.WaitReady(ctx); err != nil {
		return fmt.Errorf("docker not ready: %w", err)
	}

	tracer, shutdownTracer, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("Trace flush failed.", "err", err)
		}
	}()

	sinks := monitor.Fanout{monitor.LogSink{}}
	var store *journal.Store
	if cfg.JournalPath != "" {
		store, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, journal.Sink{Store: store})
	}

	var runtime monitor.ContainerRuntime = rt
	opts := []monitor.LoopOption{
		monitor.WithTracer(tracer),
		monitor.WithWake(rt.WatchEvents(ctx)),
	}
	if cfg.ComposeFile != "" {
		scope, err := compose.LoadScope(ctx, cfg.ComposeFile)
		if err != nil {
			return fmt.Errorf("load compose scope: %w", err)
		}
		slog.Info("Scoped to compose project.", "project", scope.Project)
		runtime = scope.WrapRuntime(rt)
		opts = append(opts, monitor.WithPolicyOverrides(scope))
	}

	loop, err := monitor.New(mcfg, runtime, sinks, opts...)
	if err != nil {
		return err
	}

	var checker *ntpcheck.Checker
	if cfg.NTPCheck {
		checker = ntpcheck.NewChecker(ntpcheck.WithPool(cfg.NTPPool))
	}

	srv := NewServer(loop, store, checker)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error { return srv.ListenAndServe(ctx, cfg.Socket) })
	if checker != nil {
		g.Go(func() error {
			checker.Run(ctx)
			return nil
		})
	}
	if store != nil {
		g.Go(func() error {
			pruneJournal(ctx, store, cfg.JournalKeep)
			return nil
		})
	}

	// Notify systemd once the API socket and monitor are up.
	if _, err := systemd.SdNotify(false, systemd.SdNotifyReady); err != nil {
		slog.Error("Failed to notify systemd that the daemon is ready.", "err", err)
	}

	return g.Wait()
}

func pruneJournal(ctx context.Context, store *journal.Store, keep int) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Prune(ctx, keep); err != nil {
				slog.Warn("Journal prune failed.", "err", err)
			}
		}
	}
}

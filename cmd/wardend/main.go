package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"warden"
	"warden/config"
	"warden/daemon"
	"warden/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	var socketPath string
	var composeFile string
	var debug bool

	cmd := &cobra.Command{
		Use:     "wardend",
		Short:   "Container health-monitoring daemon",
		Version: warden.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// Flags win over the config file.
			if socketPath != "" {
				cfg.Socket = socketPath
			}
			if composeFile != "" {
				cfg.ComposeFile = composeFile
			}
			if debug {
				cfg.LogLevel = logging.LevelDebug
			}
			if err := logging.Configure(cfg.LogLevel); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return daemon.Run(ctx, cfg)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&socketPath, "socket", "", "Unix socket path for the status API")
	cmd.Flags().StringVar(&composeFile, "compose-file", "", "Scope monitoring to one compose project")
	return cmd
}

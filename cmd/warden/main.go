package main

import (
	"fmt"
	"os"

	"warden"
	"warden/cmd/warden/ui"
	"warden/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var socketPath string
	var noColor bool

	cmd := &cobra.Command{
		Use:           "warden",
		Short:         "Inspect the container health monitor",
		Version:       warden.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.ConfigureColors(noColor)
		},
	}

	cmd.PersistentFlags().StringVar(&socketPath, "socket", config.DefaultSocket(), "Path to the wardend unix socket")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(statusCmd(&socketPath))
	cmd.AddCommand(containersCmd(&socketPath))
	cmd.AddCommand(eventsCmd(&socketPath))
	return cmd
}

package main

import (
	"fmt"
	"time"

	"warden/cmd/warden/ui"

	"github.com/spf13/cobra"
)

func statusCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := newAPIClient(*socketPath).Status(cmd.Context())
			if err != nil {
				return err
			}

			lastErr := ui.Muted("none")
			if st.LastError != "" {
				lastErr = ui.ErrorStyle.Render(st.LastError)
			}
			pairs := []ui.Pair{
				ui.KV("Version", st.Version),
				ui.KV("Uptime", formatDuration(time.Since(st.StartedAt))),
				ui.KV("Cycles", fmt.Sprintf("%d", st.Cycles)),
				ui.KV("Last cycle", formatTime(st.LastCycleAt)),
				ui.KV("Last error", lastErr),
				ui.KV("Tracked", fmt.Sprintf("%d", st.Tracked)),
			}
			if st.NTP != nil {
				pairs = append(pairs, ui.KV("Clock", fmt.Sprintf("%s (offset %dms)", st.NTP.Phase, st.NTP.OffsetMS)))
			}
			fmt.Println(ui.KeyValues("  ", pairs...))
			return nil
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}

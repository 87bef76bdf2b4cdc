package main

import (
	"fmt"

	"warden/cmd/warden/ui"

	"github.com/spf13/cobra"
)

func eventsCmd(socketPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent monitor events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := newAPIClient(*socketPath).Events(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println(ui.Muted("no events recorded"))
				return nil
			}

			rows := make([][]string, 0, len(events))
			for _, e := range events {
				rows = append(rows, []string{
					formatTime(e.At),
					e.ContainerName,
					formatKind(e.Kind),
					e.Detail,
				})
			}
			fmt.Println(ui.Table(
				[]string{"TIME", "CONTAINER", "KIND", "DETAIL"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events to show")
	return cmd
}

func formatKind(kind string) string {
	switch kind {
	case "transition":
		return ui.Accent(kind)
	case "action_taken":
		return ui.Success(kind)
	case "action_failed":
		return ui.ErrorStyle.Render(kind)
	default:
		return kind
	}
}

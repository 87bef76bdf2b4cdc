package main

import (
	"fmt"
	"strconv"

	"warden/cmd/warden/ui"

	"github.com/spf13/cobra"
)

func containersCmd(socketPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "containers",
		Short: "List tracked containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			containers, err := newAPIClient(*socketPath).Containers(cmd.Context())
			if err != nil {
				return err
			}
			if len(containers) == 0 {
				fmt.Println(ui.Muted("no containers tracked"))
				return nil
			}

			rows := make([][]string, 0, len(containers))
			for _, c := range containers {
				rows = append(rows, []string{
					shortID(c.ID),
					c.Name,
					ui.Health(c.Status),
					strconv.Itoa(c.ConsecutiveUnhealthy),
					strconv.Itoa(c.RestartsInWindow),
					formatTime(c.LastTransitionAt),
				})
			}
			fmt.Println(ui.Table(
				[]string{"ID", "NAME", "STATUS", "UNHEALTHY", "RESTARTS", "LAST CHANGE"},
				rows,
			))
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

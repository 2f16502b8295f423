package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"obsdemux/internal/ipc"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <recording>",
		Short: "Demux an existing recording now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s for %s\n", resp.JobID, path)
				return nil
			})
		},
	}
}

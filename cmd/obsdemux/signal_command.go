package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"obsdemux/internal/ipc"
	"obsdemux/internal/obsws"
)

func newSignalCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "signal <start|stop>",
		Short:     "Inject a recording lifecycle signal",
		Long:      "Tell the daemon that OBS started or stopped recording. Useful when OBS event listening is off and recording is triggered by a hotkey script.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(obsws.SignalStart), string(obsws.SignalStop)},
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := obsws.ParseSignal(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Signal(string(sig))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case resp.JobID != "":
					fmt.Fprintf(out, "Recording stopped; queued job %s\n", resp.JobID)
				case sig == obsws.SignalStart:
					fmt.Fprintln(out, "Recording session captured")
				default:
					fmt.Fprintln(out, "Recording stopped; demux disabled, nothing queued")
				}
				return nil
			})
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"obsdemux/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Ask the daemon to push a test ntfy message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp *ipc.TestNotificationResponse
			err := ctx.withClient(func(client *ipc.Client) (err error) {
				resp, err = client.TestNotification()
				return err
			})
			if err != nil {
				return err
			}
			msg := resp.Message
			switch {
			case msg != "":
			case resp.Sent:
				msg = "Test notification sent"
			default:
				msg = "Notification not sent"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

package main

import "github.com/spf13/cobra"

// skipConfigAnnotation marks commands that must run without a loadable config.
const skipConfigAnnotation = "skipConfigLoad"

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	root := &cobra.Command{
		Use:           "obsdemux",
		Short:         "Split OBS recordings into per-track files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&ctx.socketFlag, "socket", "", "Daemon socket (default: <state_dir>/obsdemux.sock)")
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(
		newDaemonCommand(ctx),
		newStartCommand(ctx),
		newStopCommand(ctx),
		newStatusCommand(ctx),
		newJobsCommand(ctx),
		newLogsCommand(ctx),
		newEnqueueCommand(ctx),
		newSignalCommand(ctx),
		newChannelsCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"obsdemux/internal/channelmap"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	var showArgs bool
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Show the compiled track mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mapping, err := channelmap.Compile(cfg.Demux.Channels)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, mapping.Len())
			for i, ch := range mapping.Channels() {
				rows = append(rows, []string{strconv.Itoa(i + 1), ch.TrackID, ch.OutputFile()})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Track", "Output"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft},
			))
			if showArgs {
				fmt.Fprintf(out, "%s -i <recording> %s\n", cfg.Demux.FFmpegBinary, strings.Join(mapping.Args(), " "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showArgs, "args", false, "Also print the ffmpeg argument list")
	return cmd
}

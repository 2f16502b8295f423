package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"obsdemux/internal/daemonrun"
	"obsdemux/internal/logs"
	"obsdemux/internal/queueaccess"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var jobID string
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log or a job's ffmpeg log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.LogDir(), daemonrun.LogPointerName)
			if id := strings.TrimSpace(jobID); id != "" {
				err := ctx.withAccess(func(access queueaccess.Access) error {
					job, err := access.Describe(cmd.Context(), id)
					if err != nil {
						return err
					}
					if job.LogPath == "" {
						return fmt.Errorf("job %s has no tool log yet (status %s)", job.JobID, job.Status)
					}
					path = job.LogPath
					return nil
				})
				if err != nil {
					return err
				}
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(tail) == 0 {
					if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
						return fmt.Errorf("log file %s not found", path)
					}
				}
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return logs.Follow(followCtx, path, offset, logs.DefaultPollInterval, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "Show the ffmpeg log of this job (id or unique prefix)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	return cmd
}

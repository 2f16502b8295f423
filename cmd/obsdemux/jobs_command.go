package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"obsdemux/internal/queueaccess"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect demux job history",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access queueaccess.Access) error {
				jobs, err := access.List(cmd.Context(), normalizeStatuses(statuses))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						shortID(job.JobID),
						titleCaser.String(job.Status),
						formatExitCode(job.ExitCode),
						job.CreatedAt,
						job.SourcePath,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "Status", "Exit", "Created", "Source"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a single job by id or unique prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("job id is required")
			}
			return ctx.withAccess(func(access queueaccess.Access) error {
				job, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:        %s\n", job.JobID)
				fmt.Fprintf(out, "Status:     %s\n", titleCaser.String(job.Status))
				fmt.Fprintf(out, "Source:     %s\n", job.SourcePath)
				fmt.Fprintf(out, "Work dir:   %s\n", job.WorkDir)
				fmt.Fprintf(out, "Exit code:  %s\n", formatExitCode(job.ExitCode))
				fmt.Fprintf(out, "Created:    %s\n", job.CreatedAt)
				fmt.Fprintf(out, "Updated:    %s\n", job.UpdatedAt)
				if job.FinishedAt != "" {
					fmt.Fprintf(out, "Finished:   %s\n", job.FinishedAt)
				}
				if job.LogPath != "" {
					fmt.Fprintf(out, "Tool log:   %s\n", job.LogPath)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:\n%s\n", job.ErrorMessage)
				}
				return nil
			})
		},
	}
}

func normalizeStatuses(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func formatExitCode(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

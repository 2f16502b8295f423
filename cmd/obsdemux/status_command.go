package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"obsdemux/internal/ipc"
	"obsdemux/internal/preflight"
)

var titleCaser = cases.Title(language.English)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session, and worker status",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newStatusPrinter(cmd.OutOrStdout())

			client, err := ctx.dialClient()
			if err != nil {
				return renderOfflineStatus(cmd, ctx, p, err)
			}
			defer client.Close()

			resp, err := client.Status()
			if err != nil {
				return err
			}
			renderStatus(p, resp)
			return nil
		},
	}
}

func renderStatus(p *statusPrinter, resp *ipc.StatusResponse) {
	p.section("Daemon")
	if resp.Running {
		p.line("Daemon", statusOK, fmt.Sprintf("running (pid %d)", resp.PID))
	} else {
		p.line("Daemon", statusWarn, "stopped")
	}
	if resp.StartedAt != "" {
		p.line("Started", statusInfo, resp.StartedAt)
	}
	for _, dep := range resp.Dependencies {
		switch {
		case dep.Available:
			p.line(dep.Name, statusOK, dep.Command)
		case dep.Optional:
			p.line(dep.Name, statusWarn, dep.Detail)
		default:
			p.line(dep.Name, statusError, dep.Detail)
		}
	}

	p.section("Session")
	if resp.DemuxEnabled {
		p.line("Demux", statusOK, "enabled")
	} else {
		p.line("Demux", statusWarn, "disabled")
	}
	state := resp.SessionState
	if state == "" {
		state = "unknown"
	}
	p.line("State", statusInfo, titleCaser.String(state))
	if resp.SessionOutput != "" {
		p.line("Recording", statusInfo, resp.SessionOutput)
	}
	if resp.LastJobID != "" {
		p.line("Last job", statusInfo, resp.LastJobID)
	}
	if resp.ListenEvents {
		if resp.ListenerConnected {
			p.line("OBS events", statusOK, "connected")
		} else {
			p.line("OBS events", statusWarn, "reconnecting")
		}
	}

	p.section("Workers")
	p.line("Pool", statusInfo, fmt.Sprintf("%d workers, %d/%d queued", resp.Workers, resp.QueueDepth, resp.QueueCapacity))
	p.line("History", statusInfo, formatCounts(resp.JobCounts))
	if len(resp.Active) > 0 {
		rows := make([][]string, 0, len(resp.Active))
		for _, job := range resp.Active {
			rows = append(rows, []string{shortID(job.JobID), titleCaser.String(job.Status), job.StartedAt, job.SourcePath})
		}
		fmt.Fprintln(p.out, renderTable([]string{"Job", "Status", "Started", "Source"}, rows, nil))
	}
	if resp.LogPath != "" {
		fmt.Fprintf(p.out, "\nLog: %s\n", resp.LogPath)
	}
}

func renderOfflineStatus(cmd *cobra.Command, ctx *commandContext, p *statusPrinter, dialErr error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return dialErr
	}
	p.section("Daemon")
	p.line("Daemon", statusWarn, "not running")
	p.section("Preflight")
	for _, res := range preflight.RunAll(cmd.Context(), cfg) {
		kind := statusOK
		if !res.Passed {
			kind = statusError
		}
		p.line(res.Name, kind, res.Detail)
	}
	return nil
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "no jobs"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

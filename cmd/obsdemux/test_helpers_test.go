package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"obsdemux/internal/config"
	"obsdemux/internal/daemon"
	"obsdemux/internal/daemonrun"
	"obsdemux/internal/ipc"
	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
	"obsdemux/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	recDir     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithDemuxEnabled(), testsupport.WithFakeFFmpeg(0))
	cfg.OBS.ListenEvents = false
	base := testsupport.BaseDir(cfg)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	d, err := daemonrun.Build(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logging.NewNop())
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}

	recDir := filepath.Join(base, "recordings")
	if err := os.MkdirAll(recDir, 0o755); err != nil {
		t.Fatalf("mkdir recordings: %v", err)
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		recDir:     recDir,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	quoted := make([]string, len(cfg.Demux.Channels))
	for i, ch := range cfg.Demux.Channels {
		quoted[i] = fmt.Sprintf("%q", ch)
	}
	content := fmt.Sprintf(`[obs]
listen_events = %t

[demux]
enabled = %t
channels = [%s]
ffmpeg_binary = %q

[readiness]
poll_interval_seconds = %d
max_wait_seconds = %d
stable_checks = %d

[paths]
state_dir = %q

[logging]
retention_days = 0
`,
		cfg.OBS.ListenEvents,
		cfg.Demux.Enabled,
		strings.Join(quoted, ", "),
		cfg.Demux.FFmpegBinary,
		cfg.Readiness.PollIntervalSeconds,
		cfg.Readiness.MaxWaitSeconds,
		cfg.Readiness.StableChecks,
		cfg.Paths.StateDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"obsdemux/internal/queue"
	"obsdemux/internal/testsupport"
)

func TestChannelsPrintsCompiledMapping(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDemuxEnabled("0|Video", "1|Desktop", "3", "2|Mic"))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"channels", "--args"}, "", configPath)
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	for _, want := range []string{"Video.mkv", "Desktop.m4a", "3.m4a", "Mic.m4a"} {
		requireContains(t, out, want)
	}
	requireContains(t, out, "-map 0:1 Desktop.m4a -map 0:3 3.m4a")
	if strings.Index(out, "Mic.m4a") < strings.Index(out, "3.m4a") {
		t.Fatalf("channels rendered out of order:\n%s", out)
	}
}

func TestStatusReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid")
	requireContains(t, out, "enabled")
	requireContains(t, out, "Idle")
	requireContains(t, out, "2 workers")
}

func TestStatusFallsBackToPreflightWhenOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFakeFFmpeg(0))
	cfg.OBS.ListenEvents = false
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"status"}, filepath.Join(t.TempDir(), "absent.sock"), configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "Preflight")
	requireContains(t, out, "State directory")
}

func TestEnqueueThenInspectJob(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(env.recDir, "2024-01-01 10-00-00.mkv")
	testsupport.WriteFile(t, source, 2048)

	out, _, err := runCLI(t, []string{"enqueue", source}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "Queued job ")
	jobID := strings.Fields(strings.TrimPrefix(out, "Queued job "))[0]

	waitFor(t, 15*time.Second, func() bool {
		rec, err := env.store.Get(t.Context(), jobID)
		return err == nil && rec != nil && rec.Status == queue.StatusSucceeded
	})

	out, _, err = runCLI(t, []string{"jobs", "list", "--status", "succeeded"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, jobID[:8])
	requireContains(t, out, "Succeeded")

	out, _, err = runCLI(t, []string{"jobs", "show", jobID[:8]}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "Job:        "+jobID)
	requireContains(t, out, "Exit code:  0")
	requireContains(t, out, source+"_demux")
}

func TestJobsListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"jobs", "list", "--status", "paused"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestEnqueueMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"enqueue", filepath.Join(env.recDir, "nope.mkv")}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected missing file to be rejected")
	}
}

func TestSignalValidation(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"signal", "pause"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown signal to fail")
	}
	_, _, err := runCLI(t, []string{"signal", "stop"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no recording session") {
		t.Fatalf("expected stop without a session to fail, got %v", err)
	}
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.OBS.ListenEvents = false
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	_, _, err := runCLI(t, []string{"signal", "stop"}, filepath.Join(t.TempDir(), "absent.sock"), configPath)
	if err == nil || !strings.Contains(err.Error(), "obsdemux daemon") {
		t.Fatalf("expected missing socket hint, got %v", err)
	}
}

func TestJobsReadStoreWhenDaemonIsDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.OBS.ListenEvents = false
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.Insert(t.Context(), "0badc0de-1111", "/rec/old.mkv", "/rec/old.mkv_demux", queue.StatusQueued); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.CancelActive(t.Context(), queue.AbandonedReason); err != nil {
		t.Fatalf("CancelActive: %v", err)
	}

	socket := filepath.Join(t.TempDir(), "absent.sock")
	out, _, err := runCLI(t, []string{"jobs", "list"}, socket, configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "0badc0de")
	requireContains(t, out, "Canceled")

	out, _, err = runCLI(t, []string{"jobs", "show", "0badc0de"}, socket, configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "/rec/old.mkv")
}

func TestLogsPrintsJobToolLog(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(env.recDir, "logged.mkv")
	testsupport.WriteFile(t, source, 1024)
	out, _, err := runCLI(t, []string{"enqueue", source}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	jobID := strings.Fields(strings.TrimPrefix(out, "Queued job "))[0]
	waitFor(t, 15*time.Second, func() bool {
		rec, err := env.store.Get(t.Context(), jobID)
		return err == nil && rec != nil && rec.Status == queue.StatusSucceeded
	})

	out, _, err = runCLI(t, []string{"logs", "--job", jobID, "-n", "5"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "stub finished")
}

func TestStopWhenNothingIsRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.OBS.ListenEvents = false
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"stop"}, filepath.Join(t.TempDir(), "absent.sock"), configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "not running")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

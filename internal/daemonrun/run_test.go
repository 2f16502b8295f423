package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"obsdemux/internal/daemon"
	"obsdemux/internal/logging"
	"obsdemux/internal/testsupport"
)

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "obsdemux-1.log")
	second := filepath.Join(dir, "obsdemux-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, LogPointerName))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "obsdemux-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsdemux.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", data)
	}
}

func TestBuildWiresDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDemuxEnabled(), testsupport.WithFakeFFmpeg(0))
	cfg.OBS.ListenEvents = false
	store := testsupport.MustOpenStore(t, cfg)

	d, err := Build(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	status := d.Status(context.Background())
	if !status.Running || status.ListenEvents {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Workflow.Workers != cfg.Workers.Count || status.Workflow.QueueCapacity != cfg.Workers.QueueSize {
		t.Fatalf("pool size = %d/%d", status.Workflow.Workers, status.Workflow.QueueCapacity)
	}
}

func TestBuildRejectsInvalidChannels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Demux.Channels = []string{"1|Dup", "2|Dup"}
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := Build(cfg, store, logging.NewNop()); err == nil {
		t.Fatal("expected duplicate outputs to be rejected")
	}
}

func TestRunLeavesRunningInstanceFilesAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.OBS.ListenEvents = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	held := flock.New(cfg.LockPath())
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer held.Unlock()

	if err := os.WriteFile(cfg.PIDPath(), []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if err := os.WriteFile(cfg.SocketPath(), []byte("live"), 0o600); err != nil {
		t.Fatalf("write socket placeholder: %v", err)
	}

	err = Run(context.Background(), cfg, Options{LogLevel: "error"})
	if !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if data, err := os.ReadFile(cfg.PIDPath()); err != nil || string(data) != "4242\n" {
		t.Fatalf("pid file = %q, %v", data, err)
	}
	if data, err := os.ReadFile(cfg.SocketPath()); err != nil || string(data) != "live" {
		t.Fatalf("socket path = %q, %v", data, err)
	}
}

func TestReloadConfigAppliesOrRejects(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDemuxEnabled(), testsupport.WithFakeFFmpeg(0))
	cfg.OBS.ListenEvents = false
	store := testsupport.MustOpenStore(t, cfg)
	d, err := Build(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ctx := context.Background()
	if !d.Status(ctx).Session.Enabled {
		t.Fatal("expected demux enabled before reload")
	}

	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeConfig := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}

	writeConfig("[demux]\nenabled = false\nchannels = [\"0|Camera\"]\n")
	if err := reloadConfig(logging.NewNop(), d, path); err != nil {
		t.Fatalf("reloadConfig: %v", err)
	}
	if d.Status(ctx).Session.Enabled {
		t.Fatal("expected reload to disable demux")
	}

	writeConfig("[demux]\nenabled = true\nchannels = [\"1|Dup\", \"2|Dup\"]\n")
	if err := reloadConfig(logging.NewNop(), d, path); err == nil {
		t.Fatal("expected duplicate outputs to be rejected")
	}
	if d.Status(ctx).Session.Enabled {
		t.Fatal("rejected config must not be applied")
	}
}

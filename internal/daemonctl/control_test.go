package daemonctl_test

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"obsdemux/internal/daemonctl"
)

func writePID(t *testing.T, path string, pid int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	pid, err := daemonctl.ReadPIDFile(filepath.Join(dir, "absent.pid"))
	if err != nil || pid != 0 {
		t.Fatalf("absent pid file = %d, %v", pid, err)
	}

	good := filepath.Join(dir, "good.pid")
	writePID(t, good, 4242)
	if pid, err := daemonctl.ReadPIDFile(good); err != nil || pid != 4242 {
		t.Fatalf("good pid file = %d, %v", pid, err)
	}

	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := daemonctl.ReadPIDFile(bad); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	dir := t.TempDir()
	_, err := daemonctl.Stop(filepath.Join(dir, "obsdemux.sock"), filepath.Join(dir, "obsdemux.pid"), time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopTerminatesRecordedProcess(t *testing.T) {
	dir := t.TempDir()
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	waited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(waited)
	}()
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	pidPath := filepath.Join(dir, "obsdemux.pid")
	writePID(t, pidPath, cmd.Process.Pid)

	res, err := daemonctl.Stop(filepath.Join(dir, "obsdemux.sock"), pidPath, 5*time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.PID != cmd.Process.Pid || res.ForcedKill {
		t.Fatalf("unexpected result %+v", res)
	}
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("process still running after Stop")
	}
}

func TestStopRemovesStalePIDFile(t *testing.T) {
	dir := t.TempDir()
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}
	pidPath := filepath.Join(dir, "obsdemux.pid")
	writePID(t, pidPath, cmd.Process.Pid)

	if _, err := daemonctl.Stop(filepath.Join(dir, "obsdemux.sock"), pidPath, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("stale pid file should be removed, stat err = %v", err)
	}
}

func TestAlive(t *testing.T) {
	if !daemonctl.Alive(os.Getpid()) {
		t.Fatal("current process should be alive")
	}
	if daemonctl.Alive(0) {
		t.Fatal("pid 0 is never alive")
	}
}

func TestWaitForClientTimesOut(t *testing.T) {
	_, err := daemonctl.WaitForClient(filepath.Join(t.TempDir(), "absent.sock"), 300*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

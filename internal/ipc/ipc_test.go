package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"obsdemux/internal/daemon"
	"obsdemux/internal/demux"
	"obsdemux/internal/ipc"
	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
	"obsdemux/internal/session"
	"obsdemux/internal/testsupport"
	"obsdemux/internal/workflow"
)

type stubController struct{ folder string }

func (s stubController) QueryRecording(context.Context) (string, string, error) {
	return s.folder, "show.mkv", nil
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDemuxEnabled(), testsupport.WithFakeFFmpeg(3))
	cfg.OBS.ListenEvents = false
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	mgr := workflow.NewManager(demux.NewRunner(logger), logger, workflow.Options{Workers: 1, QueueSize: 2})
	mgr.AddObserver(workflow.StoreObserver(store, logger))
	settings, err := session.SettingsFromConfig(cfg)
	if err != nil {
		t.Fatalf("SettingsFromConfig: %v", err)
	}
	recDir := t.TempDir()
	coord := session.NewCoordinator(stubController{folder: recDir}, mgr, settings, logger)
	d, err := daemon.New(cfg, store, logger, mgr, coord, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || !status.DemuxEnabled || status.SessionState != string(session.StateIdle) {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Workers != 1 || status.QueueCapacity != 2 {
		t.Fatalf("unexpected pool size %+v", status)
	}

	source := filepath.Join(recDir, "show.mkv")
	testsupport.WriteFile(t, source, 512)
	if _, err := client.Signal("start"); err != nil {
		t.Fatalf("Signal start: %v", err)
	}
	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.SessionState != string(session.StateRecording) || status.SessionOutput != source {
		t.Fatalf("unexpected session %+v", status)
	}
	sig, err := client.Signal("stop")
	if err != nil || sig.JobID == "" {
		t.Fatalf("Signal stop = %+v, %v", sig, err)
	}

	var job ipc.JobRecord
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.JobDescribe(sig.JobID[:8])
		if err != nil {
			t.Fatalf("JobDescribe: %v", err)
		}
		job = resp.Job
		if job.Status == string(queue.StatusFailed) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if job.Status != string(queue.StatusFailed) {
		t.Fatalf("expected failed job, got %+v", job)
	}
	if job.ExitCode == nil || *job.ExitCode != 3 {
		t.Fatalf("exit code = %v", job.ExitCode)
	}
	if job.FinishedAt == "" || job.ErrorMessage == "" {
		t.Fatalf("expected finished failure details, got %+v", job)
	}
	if !strings.HasSuffix(job.LogPath, demux.DefaultLogName) {
		t.Fatalf("log path = %q", job.LogPath)
	}

	list, err := client.JobList([]string{"failed"})
	if err != nil || len(list.Jobs) != 1 {
		t.Fatalf("JobList = %+v, %v", list, err)
	}
	if _, err := client.JobList([]string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown status")
	}

	if _, err := client.Enqueue(filepath.Join(recDir, "missing.mkv")); err == nil {
		t.Fatal("expected enqueue of missing file to fail")
	}
	manual := filepath.Join(recDir, "manual.mkv")
	testsupport.WriteFile(t, manual, 512)
	enq, err := client.Enqueue(manual)
	if err != nil || enq.JobID == "" {
		t.Fatalf("Enqueue = %+v, %v", enq, err)
	}

	if _, err := client.Signal("pause"); err == nil {
		t.Fatal("expected invalid signal to fail")
	}
	if _, err := client.JobDescribe("does-not-exist"); err == nil {
		t.Fatal("expected describe of unknown job to fail")
	}

	note, err := client.TestNotification()
	if err != nil || note.Sent {
		t.Fatalf("TestNotification = %+v, %v", note, err)
	}

	statusAfter, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if statusAfter.LastJobID != enq.JobID {
		t.Fatalf("last job = %q, want %q", statusAfter.LastJobID, enq.JobID)
	}
}

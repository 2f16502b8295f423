package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"obsdemux/internal/config"
	"obsdemux/internal/daemon"
	"obsdemux/internal/demux"
	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
	"obsdemux/internal/services"
	"obsdemux/internal/session"
	"obsdemux/internal/testsupport"
	"obsdemux/internal/workflow"
)

type stubController struct {
	folder   string
	filename string
}

func (s stubController) QueryRecording(context.Context) (string, string, error) {
	return s.folder, s.filename, nil
}

type stubListener struct {
	runs atomic.Int32
}

func (l *stubListener) Run(ctx context.Context) {
	l.runs.Add(1)
	<-ctx.Done()
}

func (l *stubListener) Connected() bool { return l.runs.Load() > 0 }

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	daemon   *daemon.Daemon
	listener *stubListener
	recDir   string
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	opts = append([]testsupport.ConfigOption{testsupport.WithDemuxEnabled("0|Video", "1|Audio"), testsupport.WithFakeFFmpeg(0)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	mgr := workflow.NewManager(demux.NewRunner(logger), logger, workflow.Options{Workers: 1, QueueSize: 4})
	mgr.AddObserver(workflow.StoreObserver(store, logger))

	settings, err := session.SettingsFromConfig(cfg)
	if err != nil {
		t.Fatalf("SettingsFromConfig: %v", err)
	}
	recDir := t.TempDir()
	coord := session.NewCoordinator(stubController{folder: recDir, filename: "show.mkv"}, mgr, settings, logger)
	listener := &stubListener{}

	d, err := daemon.New(cfg, store, logger, mgr, coord, listener, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return &harness{cfg: cfg, store: store, daemon: d, listener: listener, recDir: recDir}
}

func waitForStatus(t *testing.T, store *queue.Store, jobID string, want queue.Status) *queue.Record {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := store.Get(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec != nil && rec.Status == want {
			return rec
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", jobID, want)
	return nil
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := h.daemon.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon running, got %+v", status)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("pid = %d", status.PID)
	}
	if status.LockPath != h.cfg.LockPath() || status.DatabasePath != h.cfg.DatabasePath() {
		t.Fatalf("unexpected paths %+v", status)
	}
	if len(status.Dependencies) != 1 || !status.Dependencies[0].Available {
		t.Fatalf("expected ffmpeg available, got %+v", status.Dependencies)
	}

	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.listener.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.listener.runs.Load() != 1 {
		t.Fatal("expected listener to run")
	}

	h.daemon.Stop()
	if h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	h := newHarness(t)
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	logger := logging.NewNop()
	mgr := workflow.NewManager(demux.NewRunner(logger), logger, workflow.Options{})
	settings, _ := session.SettingsFromConfig(h.cfg)
	coord := session.NewCoordinator(nil, mgr, settings, logger)
	other, err := daemon.New(h.cfg, h.store, logger, mgr, coord, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.AcquireLock(); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := other.Start(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected lock contention, got %v", err)
	}
}

func TestStartAfterAcquireLock(t *testing.T) {
	h := newHarness(t)
	if err := h.daemon.AcquireLock(); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if err := h.daemon.AcquireLock(); err != nil {
		t.Fatalf("second AcquireLock: %v", err)
	}
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStartReconcilesAbandonedJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.store.Insert(ctx, "stale-job", "/rec/old.mkv", "/rec/old.mkv_demux", queue.StatusRunning); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec, err := h.store.Get(ctx, "stale-job")
	if err != nil || rec == nil {
		t.Fatalf("Get: %v %v", rec, err)
	}
	if rec.Status != queue.StatusCanceled || rec.ErrorMessage != queue.AbandonedReason {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestSignalStartStopRunsDemux(t *testing.T) {
	h := newHarness(t, testsupport.WithDeleteSource())
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	source := filepath.Join(h.recDir, "show.mkv")
	testsupport.WriteFile(t, source, 2048)

	if id, err := h.daemon.Signal(ctx, "start"); err != nil || id != "" {
		t.Fatalf("Signal start = %q, %v", id, err)
	}
	if snap := h.daemon.Status(ctx).Session; snap.State != session.StateRecording {
		t.Fatalf("session state = %s", snap.State)
	}
	jobID, err := h.daemon.Signal(ctx, " STOP ")
	if err != nil || jobID == "" {
		t.Fatalf("Signal stop = %q, %v", jobID, err)
	}

	rec := waitForStatus(t, h.store, jobID, queue.StatusSucceeded)
	if rec.ExitCode == nil || *rec.ExitCode != 0 {
		t.Fatalf("exit code = %v", rec.ExitCode)
	}
	for _, name := range []string{"Video.mkv", "Audio.m4a"} {
		if _, err := os.Stat(filepath.Join(source+"_demux", name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat err = %v", err)
	}

	described, err := h.daemon.DescribeJob(ctx, jobID[:8])
	if err != nil || described.JobID != jobID {
		t.Fatalf("DescribeJob = %+v, %v", described, err)
	}
	listed, err := h.daemon.ListJobs(ctx, []queue.Status{queue.StatusSucceeded})
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListJobs = %v, %v", listed, err)
	}
	if counts := h.daemon.Status(ctx).JobCounts; counts[queue.StatusSucceeded] != 1 {
		t.Fatalf("job counts = %v", counts)
	}

	if _, err := h.daemon.Signal(ctx, "pause"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEnqueueFileValidatesAndRuns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := h.daemon.EnqueueFile(ctx, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty path, got %v", err)
	}
	if _, err := h.daemon.EnqueueFile(ctx, filepath.Join(h.recDir, "missing.mkv")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing file, got %v", err)
	}
	if _, err := h.daemon.EnqueueFile(ctx, h.recDir); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for directory, got %v", err)
	}

	source := filepath.Join(h.recDir, "manual.mkv")
	testsupport.WriteFile(t, source, 1024)
	jobID, err := h.daemon.EnqueueFile(ctx, source)
	if err != nil {
		t.Fatalf("EnqueueFile: %v", err)
	}
	waitForStatus(t, h.store, jobID, queue.StatusSucceeded)
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("source should be kept without delete_source: %v", err)
	}
}

func TestDescribeUnknownJob(t *testing.T) {
	h := newHarness(t)
	if _, err := h.daemon.DescribeJob(context.Background(), "nope"); !errors.Is(err, queue.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestNotificationWithoutTopic(t *testing.T) {
	h := newHarness(t)
	sent, msg, err := h.daemon.TestNotification(context.Background())
	if err != nil || sent || msg == "" {
		t.Fatalf("TestNotification = %v, %q, %v", sent, msg, err)
	}
}

func TestApplyConfigChangesChannelsForLaterJobs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	invalid := *h.cfg
	invalid.Demux.Channels = []string{"1|Dup", "2|Dup"}
	if err := h.daemon.ApplyConfig(&invalid); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	first := filepath.Join(h.recDir, "first.mkv")
	testsupport.WriteFile(t, first, 1024)
	jobID, err := h.daemon.EnqueueFile(ctx, first)
	if err != nil {
		t.Fatalf("EnqueueFile: %v", err)
	}
	waitForStatus(t, h.store, jobID, queue.StatusSucceeded)
	if _, err := os.Stat(filepath.Join(first+"_demux", "Video.mkv")); err != nil {
		t.Fatalf("rejected config should keep previous channels: %v", err)
	}

	next := *h.cfg
	next.Demux.Channels = []string{"0|Camera", "2|Mic"}
	if err := h.daemon.ApplyConfig(&next); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	second := filepath.Join(h.recDir, "second.mkv")
	testsupport.WriteFile(t, second, 1024)
	jobID, err = h.daemon.EnqueueFile(ctx, second)
	if err != nil {
		t.Fatalf("EnqueueFile: %v", err)
	}
	waitForStatus(t, h.store, jobID, queue.StatusSucceeded)
	for _, name := range []string{"Camera.mkv", "Mic.m4a"} {
		if _, err := os.Stat(filepath.Join(second+"_demux", name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(second+"_demux", "Video.mkv")); !os.IsNotExist(err) {
		t.Fatalf("old channel output written after reload, stat err = %v", err)
	}
}

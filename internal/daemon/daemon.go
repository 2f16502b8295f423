package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"obsdemux/internal/config"
	"obsdemux/internal/deps"
	"obsdemux/internal/logging"
	"obsdemux/internal/notifications"
	"obsdemux/internal/obsws"
	"obsdemux/internal/preflight"
	"obsdemux/internal/queue"
	"obsdemux/internal/services"
	"obsdemux/internal/session"
	"obsdemux/internal/workflow"
)

// ErrAlreadyRunning reports that another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another obsdemux daemon instance is already running")

// EventListener is the long-lived OBS event subscription.
type EventListener interface {
	Run(ctx context.Context)
	Connected() bool
}

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *queue.Store
	manager     *workflow.Manager
	coordinator *session.Coordinator
	listener    EventListener
	notifier    notifications.Service
	logPath     string

	lockPath string
	lock     *flock.Flock

	mu           sync.Mutex
	running      atomic.Bool
	cancel       context.CancelFunc
	listenerDone chan struct{}
	startedAt    time.Time
	deps         []deps.Status
}

// Status represents daemon runtime information.
type Status struct {
	Running           bool
	PID               int
	StartedAt         time.Time
	Session           session.Snapshot
	Workflow          workflow.StatusSummary
	JobCounts         map[queue.Status]int
	Dependencies      []deps.Status
	ListenEvents      bool
	ListenerConnected bool
	DatabasePath      string
	LockPath          string
	LogPath           string
}

// New constructs a daemon. listener may be nil when event listening is disabled.
func New(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	manager *workflow.Manager,
	coordinator *session.Coordinator,
	listener EventListener,
	notifier notifications.Service,
) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil || coordinator == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and session coordinator")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		manager:     manager,
		coordinator: coordinator,
		listener:    listener,
		notifier:    notifier,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// AcquireLock takes the single-instance lock. It is a no-op when this daemon
// already holds it, so callers may claim the lock before Start.
func (d *Daemon) AcquireLock() error {
	if d.lock.Locked() {
		return nil
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// ApplyConfig recompiles session settings from cfg and applies them to
// signals and manual jobs that arrive afterwards. Jobs already queued keep
// the settings they were submitted with. An invalid cfg changes nothing.
func (d *Daemon) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return services.Wrap(services.ErrValidation, "daemon", "apply config", "config is required", nil)
	}
	settings, err := session.SettingsFromConfig(cfg)
	if err != nil {
		return err
	}
	d.coordinator.UpdateSettings(settings)
	d.logger.Info("session settings updated",
		logging.Bool("demux_enabled", settings.Enabled),
		logging.Int("channels", settings.Demux.Mapping.Len()),
		logging.String(logging.FieldEventType, "settings_updated"),
	)
	return nil
}

// SetLogPath records the run log path reported by Status.
func (d *Daemon) SetLogPath(path string) { d.logPath = path }

// Start acquires the daemon lock, reconciles stale job records, and launches
// the worker pool and event listener.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.AcquireLock(); err != nil {
		return err
	}

	d.reconcile(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel
	d.startedAt = time.Now()
	d.deps = preflight.CheckSystemDeps(d.cfg)
	for _, missing := range deps.Missing(d.deps) {
		logging.WarnWithContext(d.logger, "required dependency missing", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldErrorHint, "install it or set demux.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "demux jobs will fail until it is available"),
		)
	}

	if d.listener != nil && d.cfg.OBS.ListenEvents {
		done := make(chan struct{})
		d.listenerDone = done
		go func() {
			defer close(done)
			d.listener.Run(runCtx)
		}()
	}

	d.running.Store(true)
	d.logger.Info("obsdemux daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("demux_enabled", d.coordinator.Snapshot().Enabled),
		logging.Bool("listen_events", d.listener != nil && d.cfg.OBS.ListenEvents),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop cancels in-flight work and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.listenerDone != nil {
		<-d.listenerDone
		d.listenerDone = nil
	}
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("obsdemux daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.lock.Locked() {
		_ = d.lock.Unlock()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool { return d.running.Load() }

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	dependencies := append([]deps.Status(nil), d.deps...)
	d.mu.Unlock()
	if len(dependencies) == 0 {
		dependencies = preflight.CheckSystemDeps(d.cfg)
	}

	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    startedAt,
		Session:      d.coordinator.Snapshot(),
		Workflow:     d.manager.Status(),
		Dependencies: dependencies,
		ListenEvents: d.listener != nil && d.cfg.OBS.ListenEvents,
		DatabasePath: d.store.Path(),
		LockPath:     d.lockPath,
		LogPath:      d.logPath,
	}
	if d.listener != nil {
		status.ListenerConnected = d.listener.Connected()
	}
	counts, err := d.store.Counts(ctx)
	if err != nil {
		d.logger.Debug("job counts unavailable", logging.Error(err))
	}
	status.JobCounts = counts
	return status
}

// ListJobs returns job records filtered by optional statuses, newest first.
func (d *Daemon) ListJobs(ctx context.Context, statuses []queue.Status) ([]*queue.Record, error) {
	return d.store.List(ctx, statuses...)
}

// DescribeJob resolves a full or abbreviated job id.
func (d *Daemon) DescribeJob(ctx context.Context, id string) (*queue.Record, error) {
	rec, err := d.store.FindByPrefix(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", queue.ErrJobNotFound, id)
	}
	return rec, nil
}

// EnqueueFile demuxes an existing recording using the current settings.
func (d *Daemon) EnqueueFile(ctx context.Context, path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "daemon", "enqueue", "source path is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "daemon", "enqueue", "stat source file", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrValidation, "daemon", "enqueue", fmt.Sprintf("source path %q is a directory", absPath), nil)
	}
	ticket, err := d.coordinator.SubmitFile(absPath)
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, d.logger).Info("manual demux queued",
		logging.String(logging.FieldJobID, ticket.ID),
		logging.String("source", absPath),
		logging.String(logging.FieldEventType, "manual_enqueue"),
	)
	return ticket.ID, nil
}

// Signal injects a lifecycle signal ("start" or "stop"). A stop that submits
// a job returns its id.
func (d *Daemon) Signal(ctx context.Context, event string) (string, error) {
	signal, err := obsws.ParseSignal(strings.ToLower(strings.TrimSpace(event)))
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, d.logger).Info("signal injected",
		logging.String("signal", string(signal)),
		logging.String(logging.FieldEventType, "signal_injected"),
	)
	if signal == obsws.SignalStart {
		return "", d.coordinator.RecordingStarted(ctx)
	}
	ticket, err := d.coordinator.RecordingStopped(ctx)
	if err != nil || ticket == nil {
		return "", err
	}
	return ticket.ID, nil
}

// TestNotification sends a test push using the configured topic.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) reconcile(ctx context.Context) {
	abandoned, err := d.store.CancelActive(ctx, queue.AbandonedReason)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to reconcile abandoned jobs", "job_reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale jobs may appear active in history"),
		)
	} else if abandoned > 0 {
		d.logger.Info("marked abandoned jobs canceled",
			logging.Int64("count", abandoned),
			logging.String(logging.FieldEventType, "jobs_abandoned"),
		)
	}

	days := d.cfg.Logging.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	pruned, err := d.store.PruneFinished(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(d.logger, "failed to prune job history", "job_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job history keeps growing"),
		)
		return
	}
	if pruned > 0 {
		d.logger.Info("pruned job history",
			logging.Int64("count", pruned),
			logging.Int("retention_days", days),
			logging.String(logging.FieldEventType, "jobs_pruned"),
		)
	}
}

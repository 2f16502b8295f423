package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"obsdemux/internal/config"
	"obsdemux/internal/daemon"
	"obsdemux/internal/demux"
	"obsdemux/internal/ipc"
	"obsdemux/internal/logging"
	"obsdemux/internal/notifications"
	"obsdemux/internal/obsws"
	"obsdemux/internal/preflight"
	"obsdemux/internal/queue"
	"obsdemux/internal/session"
	"obsdemux/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// ConfigPath is re-read on SIGHUP. Empty repeats the default search.
	ConfigPath string
}

// LogPointerName is the stable name pointing at the current run log.
const LogPointerName = "obsdemux.log"

// Run starts the obsdemux daemon and blocks until SIGINT/SIGTERM or ctx ends.
// SIGHUP reloads session settings from opts.ConfigPath.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logDir := cfg.LogDir()
	logPath := filepath.Join(logDir, fmt.Sprintf("obsdemux-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.LogLevel()
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(logDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", LogPointerName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: logDir, Pattern: "obsdemux-*.log", Exclude: []string{logPath}},
	)
	logPreflight(signalCtx, logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	d, err := Build(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}
	d.SetLogPath(logPath)
	defer d.Close()

	// The lock guards the pid file and socket of a running instance.
	if err := d.AcquireLock(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	for {
		select {
		case <-signalCtx.Done():
			logger.Info("obsdemux daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
			return nil
		case <-reload:
			_ = reloadConfig(logger, d, opts.ConfigPath)
		}
	}
}

// reloadConfig re-reads the config file and applies its session settings.
// A config that fails to load or validate is logged and the running
// settings stay in place.
func reloadConfig(logger *slog.Logger, d *daemon.Daemon, path string) error {
	cfg, resolved, _, err := config.Load(path)
	if err == nil {
		err = d.ApplyConfig(cfg)
	}
	if err != nil {
		logging.WarnWithContext(logger, "config reload rejected", "config_reload_rejected",
			logging.String("config", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the config file and send SIGHUP again"),
			logging.String(logging.FieldImpact, "previous settings stay active"),
		)
		return err
	}
	logger.Info("config reloaded",
		logging.String("config", resolved),
		logging.String(logging.FieldEventType, "config_reloaded"),
	)
	return nil
}

// Build wires the job pipeline around store and returns an unstarted daemon.
func Build(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	settings, err := session.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	runner := demux.NewRunner(logger)
	manager := workflow.NewManager(runner, logger, workflow.Options{
		Workers:   cfg.Workers.Count,
		QueueSize: cfg.Workers.QueueSize,
	})
	manager.AddObserver(workflow.StoreObserver(store, logger))

	notifier := notifications.NewService(cfg)
	manager.AddObserver(notifications.NewDispatcher(notifier, cfg.Notifications, logger).Observe)

	controller := obsws.NewController(cfg.OBSAddress(), cfg.OBS.Password, cfg.OBSRequestTimeout(), logger)
	coordinator := session.NewCoordinator(controller, manager, settings, logger)

	var listener daemon.EventListener
	if cfg.OBS.ListenEvents {
		listener = obsws.NewListener(cfg.OBSAddress(), cfg.OBS.Password, coordinator, logger)
	}

	d, err := daemon.New(cfg, store, logger, manager, coordinator, listener, notifier)
	if err != nil {
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, LogPointerName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'obsdemux status' for details"),
			logging.String(logging.FieldImpact, "demux jobs may fail until resolved"),
		)
	}
}

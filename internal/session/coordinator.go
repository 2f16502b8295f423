package session

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"obsdemux/internal/channelmap"
	"obsdemux/internal/config"
	"obsdemux/internal/demux"
	"obsdemux/internal/logging"
	"obsdemux/internal/readiness"
	"obsdemux/internal/services"
	"obsdemux/internal/workflow"
)

// State is the coordinator lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

var (
	// ErrNoSession is returned when a stop arrives without a known recording.
	ErrNoSession = errors.New("no recording session known")
	// ErrNoRecording is returned when the controller reports no output file.
	ErrNoRecording = errors.New("controller reported no active recording")
)

const defaultControllerTimeout = 10 * time.Second

// Controller answers where the active recording is being written.
type Controller interface {
	QueryRecording(ctx context.Context) (folder, filename string, err error)
}

// Submitter accepts demux jobs without blocking.
type Submitter interface {
	Submit(job demux.Job) (*workflow.Ticket, error)
}

// Settings is the immutable configuration a coordinator acts on.
type Settings struct {
	Enabled           bool
	Demux             demux.Options
	ControllerTimeout time.Duration
}

// SettingsFromConfig compiles the channel list and readiness policy from cfg.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	mapping, err := channelmap.Compile(cfg.Demux.Channels)
	if err != nil {
		return Settings{}, services.Wrap(services.ErrValidation, "session", "compile channels", "demux.channels", err)
	}
	return Settings{
		Enabled: cfg.Demux.Enabled,
		Demux: demux.Options{
			Mapping:         mapping,
			Tool:            cfg.Demux.FFmpegBinary,
			DeleteOnSuccess: cfg.Demux.DeleteSource,
			ReadyPolicy: readiness.Policy{
				PollInterval: cfg.PollInterval(),
				MaxWait:      cfg.MaxWait(),
				StableChecks: cfg.Readiness.StableChecks,
			},
			LogName:     cfg.Demux.LogName,
			ToolTimeout: cfg.ToolTimeout(),
		},
		ControllerTimeout: cfg.OBSRequestTimeout(),
	}, nil
}

// Recording is the location of one recording session.
type Recording struct {
	Directory  string
	OutputPath string
	StartedAt  time.Time
}

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	State     State
	Enabled   bool
	Session   *Recording
	LastJobID string
}

// Coordinator reacts to recording lifecycle signals.
type Coordinator struct {
	controller Controller
	submitter  Submitter
	logger     *slog.Logger

	mu        sync.Mutex
	settings  Settings
	state     State
	session   *Recording
	lastJobID string
}

// NewCoordinator constructs a coordinator in the idle state.
func NewCoordinator(controller Controller, submitter Submitter, settings Settings, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		controller: controller,
		submitter:  submitter,
		logger:     logging.NewComponentLogger(logger, "session"),
		settings:   settings,
		state:      StateIdle,
	}
}

// UpdateSettings replaces the settings used for future signals.
func (c *Coordinator) UpdateSettings(settings Settings) {
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
}

// Settings returns the current settings.
func (c *Coordinator) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// RecordingStarted resolves the active recording path from the controller.
// Controller failures leave the coordinator idle and are returned.
func (c *Coordinator) RecordingStarted(ctx context.Context) error {
	settings := c.Settings()
	if !settings.Enabled {
		c.logger.Debug("recording start ignored; demux disabled")
		return nil
	}

	timeout := settings.ControllerTimeout
	if timeout <= 0 {
		timeout = defaultControllerTimeout
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec, err := c.queryRecording(queryCtx)
	if err != nil {
		c.mu.Lock()
		c.session = nil
		c.state = StateIdle
		c.mu.Unlock()

		hint := "check that OBS is running and obs-websocket is enabled"
		if errors.Is(err, services.ErrControllerAuth) {
			hint = "check obs.password or OBS_WEBSOCKET_PASSWORD"
		}
		logging.WarnWithContext(c.logger, "recording location unavailable", "controller_query_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "this recording will not be demuxed automatically"),
		)
		return err
	}

	c.mu.Lock()
	previous := c.session
	c.session = rec
	c.state = StateRecording
	c.mu.Unlock()

	if previous != nil && previous.OutputPath != rec.OutputPath {
		c.logger.Info("replacing unfinished recording session",
			logging.String("previous", previous.OutputPath),
			logging.String(logging.FieldEventType, "session_replaced"),
		)
	}
	c.logger.Info("recording started",
		logging.String("output", rec.OutputPath),
		logging.String("directory", rec.Directory),
		logging.String(logging.FieldEventType, "recording_started"),
	)
	return nil
}

// RecordingStopped submits a demux job for the current session and returns
// to idle. It never waits for the job.
func (c *Coordinator) RecordingStopped(ctx context.Context) (*workflow.Ticket, error) {
	c.mu.Lock()
	settings := c.settings
	if !settings.Enabled {
		c.mu.Unlock()
		c.logger.Debug("recording stop ignored; demux disabled")
		return nil, nil
	}
	rec := c.session
	c.session = nil
	c.state = StateIdle
	c.mu.Unlock()

	if rec == nil {
		logging.WarnWithContext(c.logger, "recording stopped without a known session", "session_missing",
			logging.String(logging.FieldErrorHint, "the start signal was missed or the controller query failed"),
			logging.String(logging.FieldImpact, "nothing was demuxed; use 'obsdemux enqueue <file>'"),
		)
		return nil, ErrNoSession
	}

	logging.WithContext(ctx, c.logger).Info("recording stopped",
		logging.String("output", rec.OutputPath),
		logging.Duration("session_duration", time.Since(rec.StartedAt).Round(time.Second)),
		logging.String(logging.FieldEventType, "recording_stopped"),
	)
	return c.submit(rec.OutputPath, settings)
}

// SubmitFile queues a demux job for an existing recording using the current
// settings. It bypasses the session and the enabled flag.
func (c *Coordinator) SubmitFile(path string) (*workflow.Ticket, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "session", "submit file", "path is empty", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "session", "submit file", path, err)
	}
	return c.submit(abs, c.Settings())
}

// Snapshot reports the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{State: c.state, Enabled: c.settings.Enabled, LastJobID: c.lastJobID}
	if c.session != nil {
		copied := *c.session
		snap.Session = &copied
	}
	return snap
}

func (c *Coordinator) submit(source string, settings Settings) (*workflow.Ticket, error) {
	job := demux.NewJob(source, settings.Demux)
	ticket, err := c.submitter.Submit(job)
	if err != nil {
		// the manager already logged and recorded the rejection
		return nil, err
	}
	c.mu.Lock()
	c.lastJobID = job.ID
	c.mu.Unlock()
	c.logger.Info("demux job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", source),
		logging.String("work_dir", job.WorkDir),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return ticket, nil
}

func (c *Coordinator) queryRecording(ctx context.Context) (*Recording, error) {
	if c.controller == nil {
		return nil, services.Wrap(services.ErrControllerUnreachable, "session", "query recording", "no controller configured", nil)
	}
	folder, filename, err := c.controller.QueryRecording(ctx)
	if err != nil {
		return nil, err
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, ErrNoRecording
	}
	output := filename
	if !filepath.IsAbs(output) {
		output = filepath.Join(folder, filename)
	}
	dir := strings.TrimSpace(folder)
	if dir == "" {
		dir = filepath.Dir(output)
	}
	return &Recording{Directory: dir, OutputPath: output, StartedAt: time.Now()}, nil
}

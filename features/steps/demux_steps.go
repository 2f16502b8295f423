//go:build integration

package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"obsdemux/internal/config"
	"obsdemux/internal/demux"
	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
	"obsdemux/internal/session"
	"obsdemux/internal/testsupport"
	"obsdemux/internal/workflow"
)

const jobTimeout = 20 * time.Second

// stubController answers recording queries like OBS would.
type stubController struct {
	folder   string
	filename string
}

func (s *stubController) QueryRecording(context.Context) (string, string, error) {
	return s.folder, s.filename, nil
}

// countingSubmitter records every job handed to the pool.
type countingSubmitter struct {
	next *workflow.Manager

	mu   sync.Mutex
	jobs []demux.Job
}

func (c *countingSubmitter) Submit(job demux.Job) (*workflow.Ticket, error) {
	c.mu.Lock()
	c.jobs = append(c.jobs, job)
	c.mu.Unlock()
	return c.next.Submit(job)
}

func (c *countingSubmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// demuxContext holds test state for one scenario.
type demuxContext struct {
	baseDir    string
	recDir     string
	cfg        config.Config
	exitCode   int
	controller *stubController

	store       *queue.Store
	manager     *workflow.Manager
	submitter   *countingSubmitter
	coordinator *session.Coordinator

	ticket  *workflow.Ticket
	stopErr error
	result  *demux.Result
}

// InitializeDemuxScenario registers the recording lifecycle steps.
func InitializeDemuxScenario(ctx *godog.ScenarioContext) {
	var dc *demuxContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		base, err := os.MkdirTemp("", "obsdemux-feature-*")
		if err != nil {
			return c, err
		}
		cfg := config.Default()
		cfg.Paths.StateDir = filepath.Join(base, "state")
		cfg.Readiness.PollIntervalSeconds = 1
		cfg.Readiness.MaxWaitSeconds = 10
		cfg.Readiness.StableChecks = 1
		dc = &demuxContext{baseDir: base, cfg: cfg, controller: &stubController{}}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if dc == nil {
			return c, nil
		}
		if dc.manager != nil {
			dc.manager.Stop()
		}
		if dc.store != nil {
			_ = dc.store.Close()
		}
		_ = os.RemoveAll(dc.baseDir)
		return c, nil
	})

	ctx.Step(`^a recordings directory$`, func() error { return dc.aRecordingsDirectory() })
	ctx.Step(`^the channel list:$`, func(table *godog.Table) error { return dc.theChannelList(table) })
	ctx.Step(`^demuxing is (enabled|disabled)$`, func(state string) error {
		dc.cfg.Demux.Enabled = state == "enabled"
		return nil
	})
	ctx.Step(`^source deletion is enabled$`, func() error {
		dc.cfg.Demux.DeleteSource = true
		return nil
	})
	ctx.Step(`^ffmpeg exits with status (\d+)$`, func(code int) error {
		dc.exitCode = code
		return nil
	})
	ctx.Step(`^OBS is recording to "([^"]*)"$`, func(name string) error { return dc.obsIsRecordingTo(name) })
	ctx.Step(`^the recording starts$`, func() error { return dc.theRecordingStarts() })
	ctx.Step(`^the recording stops$`, func() error { return dc.theRecordingStops() })
	ctx.Step(`^the job finishes as "([^"]*)"$`, func(status string) error { return dc.theJobFinishesAs(status) })
	ctx.Step(`^the demux directory contains:$`, func(table *godog.Table) error { return dc.theDemuxDirectoryContains(table) })
	ctx.Step(`^the recording is (kept|removed)$`, func(state string) error { return dc.theRecordingIs(state) })
	ctx.Step(`^the job error mentions "([^"]*)"$`, func(text string) error { return dc.theJobErrorMentions(text) })
	ctx.Step(`^the stop is rejected because no session is known$`, func() error { return dc.theStopIsRejected() })
	ctx.Step(`^no job was submitted$`, func() error { return dc.noJobWasSubmitted() })
}

func (dc *demuxContext) aRecordingsDirectory() error {
	dc.recDir = filepath.Join(dc.baseDir, "recordings")
	dc.controller.folder = dc.recDir
	return os.MkdirAll(dc.recDir, 0o755)
}

func (dc *demuxContext) theChannelList(table *godog.Table) error {
	channels := make([]string, 0, len(table.Rows))
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		channels = append(channels, row.Cells[0].Value)
	}
	dc.cfg.Demux.Channels = channels
	return nil
}

func (dc *demuxContext) obsIsRecordingTo(name string) error {
	dc.controller.filename = name
	return os.WriteFile(filepath.Join(dc.recDir, name), make([]byte, 4096), 0o644)
}

// ensurePipeline builds the pool and coordinator from the scenario config
// the first time a lifecycle step runs.
func (dc *demuxContext) ensurePipeline() error {
	if dc.coordinator != nil {
		return nil
	}
	binDir := filepath.Join(dc.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	tool := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(tool, []byte(testsupport.FakeFFmpegScript(dc.exitCode)), 0o755); err != nil {
		return err
	}
	dc.cfg.Demux.FFmpegBinary = tool

	settings, err := session.SettingsFromConfig(&dc.cfg)
	if err != nil {
		return err
	}
	store, err := queue.Open(&dc.cfg)
	if err != nil {
		return err
	}
	dc.store = store

	logger := logging.NewNop()
	dc.manager = workflow.NewManager(demux.NewRunner(logger), logger, workflow.Options{Workers: 1, QueueSize: 4})
	dc.manager.AddObserver(workflow.StoreObserver(store, logger))
	if err := dc.manager.Start(context.Background()); err != nil {
		return err
	}
	dc.submitter = &countingSubmitter{next: dc.manager}
	dc.coordinator = session.NewCoordinator(dc.controller, dc.submitter, settings, logger)
	return nil
}

func (dc *demuxContext) theRecordingStarts() error {
	if err := dc.ensurePipeline(); err != nil {
		return err
	}
	return dc.coordinator.RecordingStarted(context.Background())
}

func (dc *demuxContext) theRecordingStops() error {
	if err := dc.ensurePipeline(); err != nil {
		return err
	}
	dc.ticket, dc.stopErr = dc.coordinator.RecordingStopped(context.Background())
	if dc.stopErr != nil && !errors.Is(dc.stopErr, session.ErrNoSession) {
		return dc.stopErr
	}
	return nil
}

func (dc *demuxContext) theJobFinishesAs(want string) error {
	if dc.ticket == nil {
		return errors.New("no job was submitted")
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	res, err := dc.ticket.Wait(ctx)
	if err != nil {
		return err
	}
	dc.result = &res
	if string(res.Status) != want {
		return fmt.Errorf("job status = %s, want %s (err: %v)", res.Status, want, res.Err)
	}

	// The store observer runs after the ticket completes.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := dc.store.Get(ctx, res.JobID)
		if err != nil {
			return err
		}
		if rec != nil && string(rec.Status) == want {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("job %s not recorded as %s", res.JobID, want)
}

func (dc *demuxContext) theDemuxDirectoryContains(table *godog.Table) error {
	if dc.result == nil {
		return errors.New("job has not finished")
	}
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		path := filepath.Join(dc.result.WorkDir, row.Cells[0].Value)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("expected %s: %w", path, err)
		}
	}
	return nil
}

func (dc *demuxContext) theRecordingIs(state string) error {
	source := filepath.Join(dc.recDir, dc.controller.filename)
	_, err := os.Stat(source)
	switch state {
	case "kept":
		if err != nil {
			return fmt.Errorf("expected %s to remain: %w", source, err)
		}
	case "removed":
		if !os.IsNotExist(err) {
			return fmt.Errorf("expected %s to be removed (stat err: %v)", source, err)
		}
	}
	return nil
}

func (dc *demuxContext) theJobErrorMentions(text string) error {
	if dc.result == nil {
		return errors.New("job has not finished")
	}
	if msg := dc.result.ErrorMessage(); !strings.Contains(msg, text) {
		return fmt.Errorf("job error %q does not mention %q", msg, text)
	}
	return nil
}

func (dc *demuxContext) theStopIsRejected() error {
	if !errors.Is(dc.stopErr, session.ErrNoSession) {
		return fmt.Errorf("expected ErrNoSession, got %v", dc.stopErr)
	}
	return nil
}

func (dc *demuxContext) noJobWasSubmitted() error {
	if dc.ticket != nil {
		return fmt.Errorf("unexpected ticket %s", dc.ticket.ID)
	}
	if dc.submitter != nil && dc.submitter.count() > 0 {
		return fmt.Errorf("expected no jobs, got %d", dc.submitter.count())
	}
	return nil
}

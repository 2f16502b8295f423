package demux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
	"obsdemux/internal/readiness"
	"obsdemux/internal/services"
)

// toolStopGrace is how long ffmpeg gets to finalize after an interrupt.
const toolStopGrace = 5 * time.Second

// Waiter blocks until a file is safe to read.
type Waiter interface {
	Await(ctx context.Context, path string) error
}

// StatusFunc receives intermediate job statuses.
type StatusFunc func(status queue.Status)

// Runner executes demux jobs. A Runner is safe for concurrent use.
type Runner struct {
	logger    *slog.Logger
	newWaiter func(readiness.Policy) Waiter
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithWaiterFactory overrides how readiness waiters are built from a job's policy.
func WithWaiterFactory(fn func(readiness.Policy) Waiter) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.newWaiter = fn
		}
	}
}

// NewRunner constructs a Runner.
func NewRunner(logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{logger: logging.NewComponentLogger(logger, "demux")}
	r.newWaiter = func(policy readiness.Policy) Waiter {
		return readiness.NewGate(policy, readiness.WithLogger(logger))
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes job and returns its Result.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	return r.RunWithProgress(ctx, job, nil)
}

// RunWithProgress executes job, reporting the waiting and running transitions to progress.
func (r *Runner) RunWithProgress(ctx context.Context, job Job, progress StatusFunc) Result {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, r.logger)
	report := func(status queue.Status) {
		if progress != nil {
			progress(status)
		}
	}

	res := Result{
		JobID:      job.ID,
		SourcePath: job.SourcePath,
		WorkDir:    job.WorkDir,
		ExitCode:   -1,
		StartedAt:  time.Now(),
	}
	finish := func(err error) Result {
		res.Err = err
		res.Status = services.FailureStatus(err)
		res.FinishedAt = time.Now()
		return res
	}

	if err := os.Mkdir(job.WorkDir, 0o755); err != nil {
		return finish(services.Wrap(services.ErrDirectoryCreate, "demux", "mkdir", job.WorkDir, err))
	}
	logger.Debug("work directory created", logging.String("work_dir", job.WorkDir))

	report(queue.StatusWaiting)
	if err := r.newWaiter(job.ReadyPolicy).Await(ctx, job.SourcePath); err != nil {
		return finish(err)
	}

	report(queue.StatusRunning)
	res.LogPath = filepath.Join(job.WorkDir, job.LogName)
	exitCode, err := r.runTool(ctx, job, res.LogPath, logger)
	res.ExitCode = exitCode
	if err != nil {
		res.LogExcerpt = readTail(res.LogPath, ExcerptLines)
		return finish(err)
	}

	res.Outputs = existingOutputs(job)
	if len(res.Outputs) < len(job.Outputs) {
		logging.WarnWithContext(logger, "tool exited cleanly but outputs are missing", "demux_outputs_missing",
			logging.Strings("expected", job.Outputs),
			logging.Strings("found", res.Outputs),
			logging.String(logging.FieldErrorHint, "inspect "+res.LogPath),
			logging.String(logging.FieldImpact, "some tracks were not extracted"),
		)
	}

	if job.DeleteOnSuccess {
		if err := os.Remove(job.SourcePath); err != nil {
			return finish(services.Wrap(services.ErrSourceDelete, "demux", "remove source", job.SourcePath, err))
		}
		res.SourceDeleted = true
	}
	return finish(nil)
}

func (r *Runner) runTool(ctx context.Context, job Job, logPath string, logger *slog.Logger) (int, error) {
	logFile, err := os.Create(logPath)
	if err != nil {
		return -1, services.Wrap(services.ErrToolExecution, "demux", "create log", logPath, err)
	}
	defer logFile.Close()

	runCtx := ctx
	if job.ToolTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, job.ToolTimeout)
		defer cancel()
	}

	args := job.CommandArgs()
	cmd := exec.CommandContext(runCtx, job.Tool, args...)
	cmd.Dir = job.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGINT) }
	cmd.WaitDelay = toolStopGrace

	logger.Info("starting demux",
		logging.String("tool", job.Tool),
		logging.Strings("args", args),
		logging.String("work_dir", job.WorkDir),
		logging.String(logging.FieldEventType, "demux_started"),
	)

	runErr := cmd.Run()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	if runErr == nil {
		return exitCode, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return exitCode, fmt.Errorf("demux interrupted: %w", ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		// runErr may be the deadline itself when the tool exits cleanly on
		// SIGINT; keep it out of the chain so the job is not read as timed_out.
		msg := fmt.Sprintf("%s exceeded %s (exit %d)", filepath.Base(job.Tool), job.ToolTimeout, exitCode)
		return exitCode, services.Wrap(services.ErrToolExecution, "demux", "run", msg, nil)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		msg := fmt.Sprintf("%s exited with status %d", filepath.Base(job.Tool), exitCode)
		return exitCode, services.Wrap(services.ErrToolExecution, "demux", "run", msg, runErr)
	}
	return -1, services.Wrap(services.ErrToolExecution, "demux", "start", job.Tool, runErr)
}

func existingOutputs(job Job) []string {
	found := make([]string, 0, len(job.Outputs))
	for _, name := range job.Outputs {
		if _, err := os.Stat(filepath.Join(job.WorkDir, name)); err == nil {
			found = append(found, name)
		}
	}
	return found
}

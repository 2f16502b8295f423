package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"obsdemux/internal/demux"
	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
	"obsdemux/internal/services"
)

// Manager coordinates demux job execution on a fixed pool of workers.
type Manager struct {
	executor Executor
	logger   *slog.Logger
	opts     Options

	obsMu     sync.RWMutex
	observers []Observer

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	queue      chan *entry
	active     map[string]*ActiveJob
	completed  map[queue.Status]int
	lastResult *demux.Result
}

// NewManager constructs a workflow manager.
func NewManager(executor Executor, logger *slog.Logger, opts Options) *Manager {
	return &Manager{
		executor:  executor,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		opts:      opts.normalized(),
		active:    make(map[string]*ActiveJob),
		completed: make(map[queue.Status]int),
	}
}

// AddObserver registers fn for every subsequent job event.
func (m *Manager) AddObserver(fn Observer) {
	if fn == nil {
		return
	}
	m.obsMu.Lock()
	m.observers = append(m.observers, fn)
	m.obsMu.Unlock()
}

// Start launches the worker goroutines.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.executor == nil {
		m.mu.Unlock()
		return errors.New("workflow executor not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.queue = make(chan *entry, m.opts.QueueSize)
	jobs := m.queue
	m.wg.Add(m.opts.Workers)
	m.mu.Unlock()

	for i := 0; i < m.opts.Workers; i++ {
		go m.runWorker(runCtx, i+1, jobs)
	}
	m.logger.Info("workflow started",
		logging.Int("workers", m.opts.Workers),
		logging.Int("queue_size", m.opts.QueueSize),
		logging.String(logging.FieldEventType, "workflow_started"),
	)
	return nil
}

// Stop cancels in-flight jobs, cancels queued jobs, and waits for workers.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	jobs := m.queue
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	drained := 0
drain:
	for {
		select {
		case e := <-jobs:
			m.cancelEntry(e)
			drained++
		default:
			break drain
		}
	}
	m.logger.Info("workflow stopped",
		logging.Int("canceled_queued", drained),
		logging.String(logging.FieldEventType, "workflow_stopped"),
	)
}

// Submit enqueues job without blocking. It fails with ErrNotRunning or
// ErrQueueFull, and the rejection is published to observers.
func (m *Manager) Submit(job demux.Job) (*Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.running {
		err := services.Wrap(services.ErrNotRunning, "workflow", "submit", "job "+job.ID, nil)
		m.reject(job, err)
		return nil, err
	}

	e := &entry{job: job, ticket: newTicket(job.ID), ready: make(chan struct{})}
	select {
	case m.queue <- e:
	default:
		err := services.Wrap(services.ErrQueueFull, "workflow", "submit", "job "+job.ID, nil)
		m.reject(job, err)
		return nil, err
	}
	m.publish(Event{Job: job, Status: queue.StatusQueued, At: time.Now()})
	close(e.ready)
	return e.ticket, nil
}

// Status reports the pool state.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{
		Running:       m.running,
		Workers:       m.opts.Workers,
		QueueCapacity: m.opts.QueueSize,
		Completed:     make(map[queue.Status]int, len(m.completed)),
	}
	if m.queue != nil {
		summary.QueueDepth = len(m.queue)
	}
	for status, count := range m.completed {
		summary.Completed[status] = count
	}
	for _, job := range m.active {
		summary.Active = append(summary.Active, *job)
	}
	sort.Slice(summary.Active, func(i, j int) bool {
		return summary.Active[i].StartedAt.Before(summary.Active[j].StartedAt)
	})
	if m.lastResult != nil {
		last := *m.lastResult
		summary.LastResult = &last
	}
	return summary
}

func (m *Manager) runWorker(ctx context.Context, id int, jobs <-chan *entry) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-jobs:
			<-e.ready
			if ctx.Err() != nil {
				m.cancelEntry(e)
				return
			}
			m.process(ctx, logger, e)
		}
	}
}

func (m *Manager) process(ctx context.Context, logger *slog.Logger, e *entry) {
	job := e.job
	m.setActive(job, queue.StatusQueued)
	progress := func(status queue.Status) {
		m.setActive(job, status)
		m.publish(Event{Job: job, Status: status, At: time.Now()})
	}

	res := m.executor.RunWithProgress(services.WithJobID(ctx, job.ID), job, progress)
	m.clearActive(job.ID)
	logResult(logging.WithContext(services.WithJobID(ctx, job.ID), logger), res)
	m.finish(e, res)
}

func (m *Manager) cancelEntry(e *entry) {
	now := time.Now()
	res := demux.Result{
		JobID:      e.job.ID,
		SourcePath: e.job.SourcePath,
		WorkDir:    e.job.WorkDir,
		ExitCode:   -1,
		Status:     queue.StatusCanceled,
		Err:        services.Wrap(context.Canceled, "workflow", "shutdown", queue.DaemonStopReason, nil),
		StartedAt:  now,
		FinishedAt: now,
	}
	m.finish(e, res)
}

func (m *Manager) finish(e *entry, res demux.Result) {
	m.mu.Lock()
	m.completed[res.Status]++
	last := res
	m.lastResult = &last
	m.mu.Unlock()

	m.publish(Event{Job: e.job, Status: res.Status, Result: &res, At: res.FinishedAt})
	e.ticket.complete(res)
}

func (m *Manager) reject(job demux.Job, err error) {
	now := time.Now()
	res := demux.Result{
		JobID:      job.ID,
		SourcePath: job.SourcePath,
		WorkDir:    job.WorkDir,
		ExitCode:   -1,
		Status:     queue.StatusRejected,
		Err:        err,
		StartedAt:  now,
		FinishedAt: now,
	}
	logging.WarnWithContext(m.logger, "job rejected", "job_rejected",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", job.SourcePath),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "raise workers.queue_size or wait for running jobs"),
		logging.String(logging.FieldImpact, "recording was not demuxed; enqueue it manually later"),
	)
	m.publish(Event{Job: job, Status: queue.StatusRejected, Result: &res, At: now})
}

func (m *Manager) setActive(job demux.Job, status queue.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.active[job.ID]; ok {
		current.Status = status
		return
	}
	m.active[job.ID] = &ActiveJob{ID: job.ID, SourcePath: job.SourcePath, Status: status, StartedAt: time.Now()}
}

func (m *Manager) clearActive(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) publish(evt Event) {
	m.obsMu.RLock()
	observers := append([]Observer(nil), m.observers...)
	m.obsMu.RUnlock()
	for _, fn := range observers {
		m.safeNotify(fn, evt)
	}
}

func (m *Manager) safeNotify(fn Observer, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("job observer panicked",
				logging.String(logging.FieldJobID, evt.Job.ID),
				logging.String("status", string(evt.Status)),
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "observer_panic"),
				logging.String(logging.FieldErrorHint, "report this as a bug"),
			)
		}
	}()
	fn(evt)
}

func logResult(logger *slog.Logger, res demux.Result) {
	attrs := []logging.Attr{
		logging.String("source", res.SourcePath),
		logging.String("status", string(res.Status)),
		logging.Duration("duration", res.Duration().Round(time.Millisecond)),
	}
	if res.ToolRan() {
		attrs = append(attrs, logging.Int("exit_code", res.ExitCode))
	}
	if res.Succeeded() {
		attrs = append(attrs,
			logging.Strings("outputs", res.Outputs),
			logging.Bool("source_deleted", res.SourceDeleted),
			logging.String(logging.FieldEventType, "demux_completed"),
		)
		logger.Info("demux completed", logging.Args(attrs...)...)
		return
	}
	attrs = append(attrs, logging.Error(res.Err), logging.String(logging.FieldEventType, "demux_failed"))
	switch res.Status {
	case queue.StatusCanceled:
		logger.Info("demux canceled", logging.Args(attrs...)...)
	case queue.StatusTimedOut:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "OBS still holds the file; raise readiness.max_wait_seconds"))
		logging.ErrorWithContext(logger, "demux timed out", "demux_failed", attrs...)
	case queue.StatusDirectoryFailed:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "remove or rename "+res.WorkDir))
		logging.ErrorWithContext(logger, "demux work directory unavailable", "demux_failed", attrs...)
	case queue.StatusDeleteFailed:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "tracks were extracted; remove the source manually"))
		logging.ErrorWithContext(logger, "demux source removal failed", "demux_failed", attrs...)
	default:
		attrs = append(attrs, logging.Strings("log_excerpt", res.LogExcerpt), logging.String(logging.FieldErrorHint, "inspect "+res.LogPath))
		logging.ErrorWithContext(logger, "demux failed", "demux_failed", attrs...)
	}
}

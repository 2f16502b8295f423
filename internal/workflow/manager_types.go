package workflow

import (
	"context"
	"sync"
	"time"

	"obsdemux/internal/demux"
	"obsdemux/internal/queue"
)

// Executor runs a single job to completion.
type Executor interface {
	RunWithProgress(ctx context.Context, job demux.Job, progress demux.StatusFunc) demux.Result
}

// Event describes one job status transition. Result is set for terminal statuses.
type Event struct {
	Job    demux.Job
	Status queue.Status
	Result *demux.Result
	At     time.Time
}

// Terminal reports whether the event carries the final result.
func (e Event) Terminal() bool { return e.Result != nil }

// Observer receives job events. Observers run synchronously on the goroutine
// that produced the event and must not block for long.
type Observer func(Event)

// Options sizes the worker pool.
type Options struct {
	Workers   int
	QueueSize int
}

const (
	defaultWorkers   = 2
	defaultQueueSize = 32
)

func (o Options) normalized() Options {
	if o.Workers < 1 {
		o.Workers = defaultWorkers
	}
	if o.QueueSize < 1 {
		o.QueueSize = defaultQueueSize
	}
	return o
}

// Ticket tracks a submitted job.
type Ticket struct {
	ID string

	done     chan demux.Result
	finished chan struct{}
	once     sync.Once
	result   demux.Result
}

func newTicket(id string) *Ticket {
	return &Ticket{
		ID:       id,
		done:     make(chan demux.Result, 1),
		finished: make(chan struct{}),
	}
}

// Done delivers the job result exactly once.
func (t *Ticket) Done() <-chan demux.Result { return t.done }

// Wait blocks until the job finishes or ctx is done.
func (t *Ticket) Wait(ctx context.Context) (demux.Result, error) {
	select {
	case <-t.finished:
		return t.result, nil
	case <-ctx.Done():
		return demux.Result{}, ctx.Err()
	}
}

func (t *Ticket) complete(res demux.Result) {
	t.once.Do(func() {
		t.result = res
		close(t.finished)
		t.done <- res
	})
}

type entry struct {
	job    demux.Job
	ticket *Ticket
	// ready is closed once the queued event has been published.
	ready chan struct{}
}

// ActiveJob is a job currently held by a worker.
type ActiveJob struct {
	ID         string
	SourcePath string
	Status     queue.Status
	StartedAt  time.Time
}

// StatusSummary represents lightweight pool diagnostics.
type StatusSummary struct {
	Running       bool
	Workers       int
	QueueDepth    int
	QueueCapacity int
	Active        []ActiveJob
	Completed     map[queue.Status]int
	LastResult    *demux.Result
}

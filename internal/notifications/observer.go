package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"obsdemux/internal/config"
	"obsdemux/internal/demux"
	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
	"obsdemux/internal/workflow"
)

const deliveryTimeout = 30 * time.Second

// Dispatcher forwards terminal job results to a Service off the worker goroutine.
type Dispatcher struct {
	service   Service
	completed bool
	failed    bool
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher builds a dispatcher honoring the per-event toggles in cfg.
func NewDispatcher(service Service, cfg config.Notifications, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		service:   service,
		completed: cfg.JobCompleted,
		failed:    cfg.JobFailed,
		logger:    logging.NewComponentLogger(logger, "notifications"),
	}
}

// Observe is a workflow.Observer.
func (d *Dispatcher) Observe(evt workflow.Event) {
	if !evt.Terminal() {
		return
	}
	res := *evt.Result
	var send func(context.Context, demux.Result) error
	switch {
	case res.Status == queue.StatusCanceled:
		// shutdown, not an outcome worth a push
		return
	case res.Succeeded():
		if !d.completed {
			return
		}
		send = d.service.NotifyJobCompleted
	default:
		if !d.failed {
			return
		}
		send = d.service.NotifyJobFailed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := send(ctx, res); err != nil {
			logging.WarnWithContext(d.logger, "notification delivery failed", "notification_failed",
				logging.String(logging.FieldJobID, res.JobID),
				logging.String("status", string(res.Status)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "job outcome was recorded but not pushed"),
			)
		}
	}()
}

// Wait blocks until pending deliveries finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

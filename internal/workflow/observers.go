package workflow

import (
	"context"
	"log/slog"
	"time"

	"obsdemux/internal/logging"
	"obsdemux/internal/queue"
)

// JobStore is the subset of queue.Store the store observer writes to.
type JobStore interface {
	Insert(ctx context.Context, jobID, sourcePath, workDir string, status queue.Status) (*queue.Record, error)
	UpdateStatus(ctx context.Context, jobID string, status queue.Status) error
	Finish(ctx context.Context, c queue.Completion) error
}

const storeWriteTimeout = 10 * time.Second

// StoreObserver persists every job event to store. Write failures are logged
// and never interrupt the job.
func StoreObserver(store JobStore, logger *slog.Logger) Observer {
	logger = logging.NewComponentLogger(logger, "workflow-store")
	return func(evt Event) {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()

		var err error
		switch {
		case evt.Status == queue.StatusQueued:
			_, err = store.Insert(ctx, evt.Job.ID, evt.Job.SourcePath, evt.Job.WorkDir, evt.Status)
		case evt.Status == queue.StatusRejected:
			if _, err = store.Insert(ctx, evt.Job.ID, evt.Job.SourcePath, evt.Job.WorkDir, evt.Status); err == nil && evt.Result != nil {
				err = store.Finish(ctx, evt.Result.Completion())
			}
		case evt.Terminal():
			err = store.Finish(ctx, evt.Result.Completion())
		default:
			err = store.UpdateStatus(ctx, evt.Job.ID, evt.Status)
		}
		if err != nil {
			logging.WarnWithContext(logger, "job history write failed", "job_store_failed",
				logging.String(logging.FieldJobID, evt.Job.ID),
				logging.String("status", string(evt.Status)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the state directory is writable"),
				logging.String(logging.FieldImpact, "job history may be incomplete; the demux itself is unaffected"),
			)
		}
	}
}

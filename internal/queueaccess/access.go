package queueaccess

import (
	"context"
	"fmt"

	"obsdemux/internal/ipc"
	"obsdemux/internal/queue"
)

// Access reads job history regardless of IPC or direct store backing.
type Access interface {
	Counts(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]ipc.JobRecord, error)
	Describe(ctx context.Context, id string) (ipc.JobRecord, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct database reads.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Counts(context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.JobCounts, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]ipc.JobRecord, error) {
	resp, err := a.client.JobList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (a *ipcAccess) Describe(_ context.Context, id string) (ipc.JobRecord, error) {
	resp, err := a.client.JobDescribe(id)
	if err != nil {
		return ipc.JobRecord{}, err
	}
	return resp.Job, nil
}

type storeAccess struct {
	store *queue.Store
}

func (a *storeAccess) Counts(ctx context.Context) (map[string]int, error) {
	counts, err := a.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out, nil
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]ipc.JobRecord, error) {
	filter := make([]queue.Status, 0, len(statuses))
	for _, raw := range statuses {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown job status %q", raw)
		}
		filter = append(filter, status)
	}
	records, err := a.store.List(ctx, filter...)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.JobRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			out = append(out, ipc.FromRecord(rec))
		}
	}
	return out, nil
}

func (a *storeAccess) Describe(ctx context.Context, id string) (ipc.JobRecord, error) {
	rec, err := a.store.FindByPrefix(ctx, id)
	if err != nil {
		return ipc.JobRecord{}, err
	}
	if rec == nil {
		return ipc.JobRecord{}, fmt.Errorf("%w: %s", queue.ErrJobNotFound, id)
	}
	return ipc.FromRecord(rec), nil
}

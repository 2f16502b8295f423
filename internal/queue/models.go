package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a demux job.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusWaiting         Status = "waiting"
	StatusRunning         Status = "running"
	StatusSucceeded       Status = "succeeded"
	StatusFailed          Status = "failed"
	StatusTimedOut        Status = "timed_out"
	StatusDirectoryFailed Status = "directory_failed"
	StatusDeleteFailed    Status = "delete_failed"
	StatusCanceled        Status = "canceled"
	StatusRejected        Status = "rejected"
)

// DaemonStopReason is recorded on jobs canceled because the daemon stopped.
const DaemonStopReason = "daemon stopped"

// AbandonedReason is recorded on jobs a previous daemon left in flight.
const AbandonedReason = "abandoned by previous daemon run"

var allStatuses = []Status{
	StatusQueued,
	StatusWaiting,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusTimedOut,
	StatusDirectoryFailed,
	StatusDeleteFailed,
	StatusCanceled,
	StatusRejected,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var activeStatuses = map[Status]struct{}{
	StatusQueued:  {},
	StatusWaiting: {},
	StatusRunning: {},
}

// Record is one persisted job row.
type Record struct {
	ID           int64
	JobID        string
	SourcePath   string
	WorkDir      string
	Status       Status
	ExitCode     *int
	LogPath      string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// Completion carries the terminal fields written when a job finishes.
type Completion struct {
	JobID        string
	Status       Status
	ExitCode     *int
	LogPath      string
	ErrorMessage string
	FinishedAt   time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsActive reports whether the status belongs to a job that has not finished.
func (s Status) IsActive() bool {
	_, ok := activeStatuses[s]
	return ok
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	_, known := statusSet[s]
	return known && !s.IsActive()
}

// IsActive reports whether the record is still in flight.
func (r Record) IsActive() bool { return r.Status.IsActive() }

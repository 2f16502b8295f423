package ipc

import (
	"time"

	"obsdemux/internal/daemon"
	"obsdemux/internal/queue"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// ActiveJob is a job currently held by a worker.
type ActiveJob struct {
	JobID      string `json:"job_id"`
	SourcePath string `json:"source_path"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
}

// StatusResponse represents combined daemon, session, and pool status.
type StatusResponse struct {
	Running           bool               `json:"running"`
	PID               int                `json:"pid"`
	StartedAt         string             `json:"started_at"`
	DemuxEnabled      bool               `json:"demux_enabled"`
	SessionState      string             `json:"session_state"`
	SessionOutput     string             `json:"session_output"`
	LastJobID         string             `json:"last_job_id"`
	ListenEvents      bool               `json:"listen_events"`
	ListenerConnected bool               `json:"listener_connected"`
	Workers           int                `json:"workers"`
	QueueDepth        int                `json:"queue_depth"`
	QueueCapacity     int                `json:"queue_capacity"`
	Active            []ActiveJob        `json:"active"`
	JobCounts         map[string]int     `json:"job_counts"`
	Dependencies      []DependencyStatus `json:"dependencies"`
	DatabasePath      string             `json:"database_path"`
	LockPath          string             `json:"lock_path"`
	LogPath           string             `json:"log_path"`
}

// JobRecord is the wire form of a job history row.
type JobRecord struct {
	JobID        string `json:"job_id"`
	SourcePath   string `json:"source_path"`
	WorkDir      string `json:"work_dir"`
	Status       string `json:"status"`
	ExitCode     *int   `json:"exit_code,omitempty"`
	LogPath      string `json:"log_path"`
	ErrorMessage string `json:"error_message"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	FinishedAt   string `json:"finished_at"`
}

// JobListRequest filters job listing by status.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobListResponse contains job records, newest first.
type JobListResponse struct {
	Jobs []JobRecord `json:"jobs"`
}

// JobDescribeRequest fetches a single job by full or abbreviated id.
type JobDescribeRequest struct {
	JobID string `json:"job_id"`
}

// JobDescribeResponse contains a single job.
type JobDescribeResponse struct {
	Job JobRecord `json:"job"`
}

// EnqueueRequest asks for a manual demux of an existing recording.
type EnqueueRequest struct {
	Path string `json:"path"`
}

// EnqueueResponse carries the submitted job id.
type EnqueueResponse struct {
	JobID string `json:"job_id"`
}

// SignalRequest injects a lifecycle signal.
type SignalRequest struct {
	Event string `json:"event"`
}

// SignalResponse carries the job id submitted by a stop signal, if any.
type SignalResponse struct {
	JobID string `json:"job_id"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification result.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// FromRecord converts a store record into its wire form.
func FromRecord(rec *queue.Record) JobRecord {
	out := JobRecord{
		JobID:        rec.JobID,
		SourcePath:   rec.SourcePath,
		WorkDir:      rec.WorkDir,
		Status:       string(rec.Status),
		ExitCode:     rec.ExitCode,
		LogPath:      rec.LogPath,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    formatTime(rec.CreatedAt),
		UpdatedAt:    formatTime(rec.UpdatedAt),
	}
	if rec.FinishedAt != nil {
		out.FinishedAt = formatTime(*rec.FinishedAt)
	}
	return out
}

func fromStatus(status daemon.Status) StatusResponse {
	resp := StatusResponse{
		Running:           status.Running,
		PID:               status.PID,
		StartedAt:         formatTime(status.StartedAt),
		DemuxEnabled:      status.Session.Enabled,
		SessionState:      string(status.Session.State),
		LastJobID:         status.Session.LastJobID,
		ListenEvents:      status.ListenEvents,
		ListenerConnected: status.ListenerConnected,
		Workers:           status.Workflow.Workers,
		QueueDepth:        status.Workflow.QueueDepth,
		QueueCapacity:     status.Workflow.QueueCapacity,
		JobCounts:         make(map[string]int, len(status.JobCounts)),
		DatabasePath:      status.DatabasePath,
		LockPath:          status.LockPath,
		LogPath:           status.LogPath,
	}
	if status.Session.Session != nil {
		resp.SessionOutput = status.Session.Session.OutputPath
	}
	for _, job := range status.Workflow.Active {
		resp.Active = append(resp.Active, ActiveJob{
			JobID:      job.ID,
			SourcePath: job.SourcePath,
			Status:     string(job.Status),
			StartedAt:  formatTime(job.StartedAt),
		})
	}
	for k, v := range status.JobCounts {
		resp.JobCounts[string(k)] = v
	}
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return resp
}

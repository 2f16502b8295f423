package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"obsdemux/internal/config"
	"obsdemux/internal/demux"
)

const (
	userAgent      = "obsdemux/0.1.0"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2048
)

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyJobCompleted(ctx context.Context, result demux.Result) error
	NotifyJobFailed(ctx context.Context, result demux.Result) error
	TestNotification(ctx context.Context) error
}

// NewService posts to the configured ntfy topic URL. Without a topic every
// call is a no-op.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ntfyService{topicURL: topic, http: &http.Client{Timeout: timeout}}
}

// notice is one ntfy message; headers carry everything except the body.
type notice struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

func (n notice) apply(h http.Header) {
	h.Set("User-Agent", userAgent)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	if n.Title != "" {
		h.Set("Title", n.Title)
	}
	if len(n.Tags) > 0 {
		h.Set("Tags", strings.Join(n.Tags, ","))
	}
	if n.Priority != "" {
		h.Set("Priority", n.Priority)
	}
}

func completedNotice(r demux.Result) notice {
	lines := []string{
		"✅ Demuxed: " + filepath.Base(r.SourcePath),
		"Tracks: " + strings.Join(r.Outputs, ", "),
		"Output: " + r.WorkDir,
	}
	if r.SourceDeleted {
		lines = append(lines, "Source removed")
	}
	lines = append(lines, "Job: "+r.JobID)
	return notice{
		Title: "obsdemux - Demux Complete",
		Body:  strings.Join(lines, "\n"),
		Tags:  []string{"obsdemux", "demux", "completed"},
	}
}

func failedNotice(r demux.Result) notice {
	status := string(r.Status)
	lines := []string{fmt.Sprintf("❌ Demux %s: %s", strings.ReplaceAll(status, "_", " "), filepath.Base(r.SourcePath))}
	if r.ToolRan() {
		lines = append(lines, fmt.Sprintf("Exit code: %d", r.ExitCode))
	}
	if msg := strings.TrimSpace(r.ErrorMessage()); msg != "" {
		lines = append(lines, "Error: "+msg)
	}
	if len(r.LogExcerpt) > 0 {
		lines = append(lines, "---")
		lines = append(lines, r.LogExcerpt...)
		lines = append(lines, "---")
	}
	lines = append(lines, "Job: "+r.JobID)
	return notice{
		Title:    "obsdemux - Demux Failed",
		Body:     strings.Join(lines, "\n"),
		Tags:     []string{"obsdemux", "demux", status},
		Priority: "high",
	}
}

type ntfyService struct {
	topicURL string
	http     *http.Client
}

func (s *ntfyService) NotifyJobCompleted(ctx context.Context, result demux.Result) error {
	return s.post(ctx, completedNotice(result))
}

func (s *ntfyService) NotifyJobFailed(ctx context.Context, result demux.Result) error {
	return s.post(ctx, failedNotice(result))
}

func (s *ntfyService) TestNotification(ctx context.Context) error {
	return s.post(ctx, notice{
		Title:    "obsdemux - Test",
		Body:     "🧪 Notification system test",
		Tags:     []string{"obsdemux", "test"},
		Priority: "low",
	})
}

func (s *ntfyService) post(ctx context.Context, n notice) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.topicURL, strings.NewReader(n.Body))
	if err != nil {
		return fmt.Errorf("ntfy request: %w", err)
	}
	n.apply(req.Header)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("ntfy returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, demux.Result) error { return nil }
func (noopService) NotifyJobFailed(context.Context, demux.Result) error    { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }

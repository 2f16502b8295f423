package demux

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"obsdemux/internal/queue"
)

// ExcerptLines is the number of trailing log lines kept on failure.
const ExcerptLines = 20

const excerptReadLimit = 64 * 1024

// Result is the structured outcome of a job.
type Result struct {
	JobID         string
	SourcePath    string
	WorkDir       string
	LogPath       string
	Status        queue.Status
	ExitCode      int
	LogExcerpt    []string
	Outputs       []string
	SourceDeleted bool
	Err           error
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Succeeded reports whether every track was extracted.
func (r Result) Succeeded() bool { return r.Status == queue.StatusSucceeded }

// ToolRan reports whether the tool produced an exit code.
func (r Result) ToolRan() bool { return r.ExitCode >= 0 }

// Duration is the wall time between start and finish.
func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorMessage returns the error text, or "" on success.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Completion converts the result into a store completion record.
func (r Result) Completion() queue.Completion {
	c := queue.Completion{
		JobID:        r.JobID,
		Status:       r.Status,
		LogPath:      r.LogPath,
		ErrorMessage: r.ErrorMessage(),
		FinishedAt:   r.FinishedAt,
	}
	if r.ToolRan() {
		code := r.ExitCode
		c.ExitCode = &code
	}
	return c
}

// readTail returns up to n trailing non-empty lines of the file at path.
func readTail(path string, n int) []string {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil
	}
	offset := int64(0)
	if info.Size() > excerptReadLimit {
		offset = info.Size() - excerptReadLimit
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil
	}
	if offset > 0 {
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
			data = data[idx+1:]
		}
	}

	lines := make([]string, 0, n)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), excerptReadLimit)
	for scanner.Scan() {
		// ffmpeg progress lines use carriage returns.
		for _, part := range strings.Split(scanner.Text(), "\r") {
			if line := strings.TrimSpace(part); line != "" {
				lines = append(lines, line)
			}
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"obsdemux/internal/queue"
)

var (
	ErrControllerUnreachable = errors.New("controller unreachable")
	ErrControllerAuth        = errors.New("controller authentication failed")
	ErrTimedOut              = errors.New("file never became ready")
	ErrToolExecution         = errors.New("external tool error")
	ErrSourceDelete          = errors.New("source delete failed")
	ErrDirectoryCreate       = errors.New("work directory creation failed")
	ErrQueueFull             = errors.New("job queue full")
	ErrNotRunning            = errors.New("job manager not running")
	ErrValidation            = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrToolExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a job error to the status recorded for it.
func FailureStatus(err error) queue.Status {
	switch {
	case err == nil:
		return queue.StatusSucceeded
	case errors.Is(err, context.Canceled):
		return queue.StatusCanceled
	case errors.Is(err, ErrToolExecution):
		return queue.StatusFailed
	case errors.Is(err, ErrTimedOut), errors.Is(err, context.DeadlineExceeded):
		return queue.StatusTimedOut
	case errors.Is(err, ErrDirectoryCreate):
		return queue.StatusDirectoryFailed
	case errors.Is(err, ErrSourceDelete):
		return queue.StatusDeleteFailed
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrNotRunning):
		return queue.StatusRejected
	default:
		return queue.StatusFailed
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

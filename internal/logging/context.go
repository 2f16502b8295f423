package logging

import (
	"context"
	"log/slog"

	"obsdemux/internal/services"
)

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
)

// ContextFields returns the job and correlation attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	var fields []slog.Attr
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext binds the attributes from ctx onto logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); fields != nil {
		return logger.With(Args(fields...)...)
	}
	return logger
}

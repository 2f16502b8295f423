// Package logging assembles structured slog loggers and formatting helpers used
// across obsdemux.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so job code automatically tags
// log lines with job and correlation IDs. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging

// Package logs reads daemon and tool log files for the CLI: the last N lines
// of a file and, optionally, lines appended afterwards.
package logs

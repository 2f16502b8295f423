// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, the request/response DTOs, and the
// conversion from job store records to wire representations. Every call is
// tagged with a correlation id so daemon log lines can be tied back to the
// CLI invocation that caused them.
package ipc

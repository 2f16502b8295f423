// Package main hosts the obsdemux CLI.
//
// The Cobra command tree runs the daemon in the foreground and translates
// everything else (status, job history, manual enqueue, lifecycle signals)
// into IPC calls against the running daemon. The channels and config
// commands work offline against the resolved configuration file.
package main

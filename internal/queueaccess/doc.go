// Package queueaccess lets CLI commands read job history whether or not the
// daemon is running. With a reachable daemon reads go over IPC; otherwise the
// SQLite store is opened directly.
package queueaccess

// Package queue persists demux job history in SQLite.
//
// Every job the workflow manager sees gets a row keyed by its UUID. Rows move
// through queued, waiting, and running before landing in one terminal status,
// with the tool exit code, log path, and error message captured on the way
// out. The store backs `obsdemux jobs`, the daemon status counts, and the
// startup sweep that cancels rows a crashed process left in flight.
//
// The database is observability state rather than a work queue: jobs are never
// resumed from it. Schema changes bump schemaVersion in schema.go; users
// delete jobs.db to adopt the new schema.
package queue

// Package workflow runs demux jobs on a bounded worker pool.
//
// Submit places a job on a buffered queue without blocking and returns a
// Ticket whose Done channel delivers the final Result. Workers pull jobs and
// hand them to the Executor (normally a demux.Runner). Every status change
// (queued, waiting, running, and the terminal status) is fanned out to
// registered observers, which is how the job store, notifications, and the
// result log stay in sync. Stop cancels in-flight jobs and marks anything
// still queued as canceled so no ticket is left hanging.
package workflow

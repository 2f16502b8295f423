// Package daemon coordinates the long-running obsdemux process.
//
// It wires the job store, the workflow manager, the session coordinator and
// the OBS event listener into a single lifecycle with flock-based locking to
// prevent multiple instances. On start it marks job records abandoned by a
// previous process as canceled and prunes old history. The daemon also owns
// the operations exposed over IPC: status, job inspection, manual enqueue
// and signal injection.
package daemon

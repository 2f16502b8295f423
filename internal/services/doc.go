// Package services defines shared helpers consumed by the demux pipeline and
// its integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and correlation identifiers for
//     logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent job statuses (timed_out, directory_failed, and so on).
//
// Use these helpers when wiring new pipeline code so failures surface with the
// same classification in the job store, notifications, and logs.
package services

// Package session tracks the recording lifecycle and turns a finished
// recording into a demux job.
//
// The Coordinator is driven by two signals. RecordingStarted asks the OBS
// controller where the recording is being written and remembers it;
// RecordingStopped snapshots that location and submits a job built from the
// settings current at that moment. Settings can be swapped at any time
// without affecting jobs already submitted.
package session

// Package demux runs one extraction job per finished recording.
//
// A Job is an immutable snapshot built when recording stops: source path,
// work directory (source + "_demux"), compiled -map arguments, and the tool
// settings current at that moment. Runner.Run creates the work directory
// exclusively, waits for the readiness gate, runs ffmpeg with its combined
// output captured to a log file, and optionally removes the source after a
// clean exit. Every outcome comes back as a Result with a job status rather
// than an error, so callers never have to interpret process state.
package demux

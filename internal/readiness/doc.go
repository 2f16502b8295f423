// Package readiness waits until OBS has released a finished recording.
//
// A Gate polls the file at a fixed interval. A probe succeeds when the file
// opens for append, a shared advisory lock can be taken, and the size matches
// the previous successful probe. Missing files and failed probes reset the
// streak. The wait is bounded: once MaxWait elapses Await returns an error
// wrapping services.ErrTimedOut.
package readiness

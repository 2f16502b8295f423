// Package obsws speaks the obs-websocket v4 protocol.
//
// Controller opens a short-lived connection per query to learn where the
// current recording is being written. Listener keeps a long-lived connection
// open, forwards RecordingStarted and RecordingStopped events to a
// SignalHandler, and reconnects with capped exponential backoff whenever OBS
// goes away.
package obsws

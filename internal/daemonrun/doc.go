// Package daemonrun assembles and runs the obsdemux daemon process: run
// logs, the job store, the demux pipeline, the OBS listener, and the IPC
// socket.
package daemonrun

// Package channelmap compiles the configured channel list into the ordered
// ffmpeg mapping arguments used by demux jobs.
//
// A channel is written as "id" or "id|name". Track 0 is treated as the video
// track and lands in a Matroska container; every other track is written as an
// AAC audio file. Compilation is pure, so callers recompute a Mapping whenever
// the configuration changes.
package channelmap

// Package notifications delivers demux job outcomes via ntfy.
//
// NewService publishes to the topic configured in config.toml and degrades
// to a no-op when no topic is set. Observer adapts a Service into a workflow
// observer so every finished job can be announced without the workers
// waiting on HTTP.
package notifications

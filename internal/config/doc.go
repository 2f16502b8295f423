// Package config loads, normalizes, and validates obsdemux configuration.
//
// Configuration lives in TOML (default ~/.config/obsdemux/config.toml or
// ./obsdemux.toml). Load applies defaults, expands user paths, falls back to
// OBS_WEBSOCKET_PASSWORD for the controller password, and validates the
// channel list by compiling it. CreateSample writes the embedded starter file
// used by `obsdemux config init`.
package config

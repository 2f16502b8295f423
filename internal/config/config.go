package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

//go:embed sample_config.toml
var sampleConfig string

// OBS contains connection settings for the obs-websocket controller.
type OBS struct {
	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	Password              string `toml:"password"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	ListenEvents          bool   `toml:"listen_events"`
}

// Demux controls how finished recordings are split.
type Demux struct {
	Enabled            bool     `toml:"enabled"`
	DeleteSource       bool     `toml:"delete_source"`
	Channels           []string `toml:"channels"`
	FFmpegBinary       string   `toml:"ffmpeg_binary"`
	LogName            string   `toml:"log_name"`
	ToolTimeoutSeconds int      `toml:"tool_timeout_seconds"`
}

// Readiness bounds the wait for OBS to release a finished recording.
type Readiness struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	MaxWaitSeconds      int `toml:"max_wait_seconds"`
	StableChecks        int `toml:"stable_checks"`
}

// Workers sizes the background job pool.
type Workers struct {
	Count     int `toml:"count"`
	QueueSize int `toml:"queue_size"`
}

// Paths contains the daemon state directory.
type Paths struct {
	StateDir string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	Debug         bool   `toml:"debug"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Config encapsulates all configuration values for obsdemux.
//
// Configuration sections by subsystem:
//   - OBS: obs-websocket host, credentials, and event subscription
//   - Demux: channel list, ffmpeg binary, and source deletion
//   - Readiness: file release polling and wait bounds
//   - Workers: concurrent job count and queue depth
//   - Paths: daemon state directory
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
type Config struct {
	OBS           OBS           `toml:"obs"`
	Demux         Demux         `toml:"demux"`
	Readiness     Readiness     `toml:"readiness"`
	Workers       Workers       `toml:"workers"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// EnsureDirectories creates the state and log directories used by the daemon.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.LogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogDir is where daemon run logs are written.
func (c *Config) LogDir() string { return filepath.Join(c.Paths.StateDir, "logs") }

// DatabasePath is the SQLite job history location.
func (c *Config) DatabasePath() string { return filepath.Join(c.Paths.StateDir, "jobs.db") }

// SocketPath is the daemon IPC socket.
func (c *Config) SocketPath() string { return filepath.Join(c.Paths.StateDir, "obsdemux.sock") }

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string { return filepath.Join(c.Paths.StateDir, "obsdemux.lock") }

// PIDPath records the running daemon's process id.
func (c *Config) PIDPath() string { return filepath.Join(c.Paths.StateDir, "obsdemux.pid") }

// OBSAddress returns the websocket URL for the controller.
func (c *Config) OBSAddress() string {
	return fmt.Sprintf("ws://%s:%d", c.OBS.Host, c.OBS.Port)
}

// OBSRequestTimeout bounds a single controller query.
func (c *Config) OBSRequestTimeout() time.Duration {
	return time.Duration(c.OBS.RequestTimeoutSeconds) * time.Second
}

// PollInterval is the delay between readiness probes.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Readiness.PollIntervalSeconds) * time.Second
}

// MaxWait bounds the readiness wait.
func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.Readiness.MaxWaitSeconds) * time.Second
}

// ToolTimeout bounds a single ffmpeg run. Zero disables the limit.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Demux.ToolTimeoutSeconds) * time.Second
}

// LogLevel returns the effective level, honoring the debug switch.
func (c *Config) LogLevel() string {
	if c.Logging.Debug {
		return "debug"
	}
	return c.Logging.Level
}

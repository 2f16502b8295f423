package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeOBS()
	c.normalizeDemux()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	return nil
}

func (c *Config) normalizeOBS() {
	c.OBS.Host = strings.TrimSpace(c.OBS.Host)
	if c.OBS.Host == "" {
		c.OBS.Host = defaultOBSHost
	}
	if c.OBS.Password == "" {
		if value, ok := os.LookupEnv(passwordEnvVar); ok {
			c.OBS.Password = value
		}
	}
	if c.OBS.RequestTimeoutSeconds <= 0 {
		c.OBS.RequestTimeoutSeconds = defaultOBSRequestTimeout
	}
}

func (c *Config) normalizeDemux() {
	c.Demux.FFmpegBinary = strings.TrimSpace(c.Demux.FFmpegBinary)
	if c.Demux.FFmpegBinary == "" {
		c.Demux.FFmpegBinary = defaultFFmpegBinary
	}
	c.Demux.LogName = strings.TrimSpace(c.Demux.LogName)
	if c.Demux.LogName == "" {
		c.Demux.LogName = defaultToolLogName
	}
	channels := make([]string, 0, len(c.Demux.Channels))
	for _, ch := range c.Demux.Channels {
		if trimmed := strings.TrimSpace(ch); trimmed != "" {
			channels = append(channels, trimmed)
		}
	}
	c.Demux.Channels = channels
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	var err error
	if c.Paths.StateDir, err = ExpandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

package config

import (
	"errors"
	"fmt"

	"obsdemux/internal/channelmap"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOBS(); err != nil {
		return err
	}
	if err := c.validateDemux(); err != nil {
		return err
	}
	if err := c.validateReadiness(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOBS() error {
	if c.OBS.Port < minOBSPort || c.OBS.Port > maxOBSPort {
		return fmt.Errorf("obs.port must be between %d and %d, got %d", minOBSPort, maxOBSPort, c.OBS.Port)
	}
	return nil
}

func (c *Config) validateDemux() error {
	if c.Demux.Enabled && len(c.Demux.Channels) == 0 {
		return errors.New("demux.channels must list at least one channel when demux.enabled is true")
	}
	if _, err := channelmap.Compile(c.Demux.Channels); err != nil {
		return fmt.Errorf("demux.channels: %w", err)
	}
	if c.Demux.ToolTimeoutSeconds < 0 {
		return errors.New("demux.tool_timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateReadiness() error {
	if c.Readiness.PollIntervalSeconds <= 0 {
		return errors.New("readiness.poll_interval_seconds must be positive")
	}
	if c.Readiness.MaxWaitSeconds <= 0 {
		return errors.New("readiness.max_wait_seconds must be positive")
	}
	if c.Readiness.StableChecks < 1 {
		return errors.New("readiness.stable_checks must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 1 {
		return errors.New("workers.count must be at least 1")
	}
	if c.Workers.QueueSize < 1 {
		return errors.New("workers.queue_size must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

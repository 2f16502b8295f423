package config

const (
	defaultOBSHost              = "localhost"
	defaultOBSPort              = 4444
	defaultOBSRequestTimeout    = 10
	defaultFFmpegBinary         = "ffmpeg"
	defaultToolLogName          = "ffmpeg_output.txt"
	defaultPollIntervalSeconds  = 5
	defaultMaxWaitSeconds       = 3600
	defaultStableChecks         = 2
	defaultWorkerCount          = 2
	defaultQueueSize            = 32
	defaultStateDir             = "~/.local/share/obsdemux"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
	defaultNotifyRequestTimeout = 10
	passwordEnvVar              = "OBS_WEBSOCKET_PASSWORD"
	defaultConfigLocation       = "~/.config/obsdemux/config.toml"
	projectConfigName           = "obsdemux.toml"
	minOBSPort                  = 1024
	maxOBSPort                  = 65535
)

// DefaultChannels is the channel list used when none is configured.
var DefaultChannels = []string{"0|Video", "1|DefaultAudio"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	channels := make([]string, len(DefaultChannels))
	copy(channels, DefaultChannels)
	return Config{
		OBS: OBS{
			Host:                  defaultOBSHost,
			Port:                  defaultOBSPort,
			RequestTimeoutSeconds: defaultOBSRequestTimeout,
			ListenEvents:          true,
		},
		Demux: Demux{
			Channels:     channels,
			FFmpegBinary: defaultFFmpegBinary,
			LogName:      defaultToolLogName,
		},
		Readiness: Readiness{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			MaxWaitSeconds:      defaultMaxWaitSeconds,
			StableChecks:        defaultStableChecks,
		},
		Workers: Workers{
			Count:     defaultWorkerCount,
			QueueSize: defaultQueueSize,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
	}
}

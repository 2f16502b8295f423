package config_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"obsdemux/internal/config"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := config.Default()

	if cfg.OBS.Host != "localhost" || cfg.OBS.Port != 4444 {
		t.Fatalf("unexpected obs defaults: %+v", cfg.OBS)
	}
	if !cfg.OBS.ListenEvents {
		t.Fatal("expected listen_events to default to true")
	}
	if cfg.Demux.Enabled {
		t.Fatal("expected demux to be disabled by default")
	}
	if cfg.Demux.DeleteSource {
		t.Fatal("expected delete_source to default to false")
	}
	if !reflect.DeepEqual(cfg.Demux.Channels, []string{"0|Video", "1|DefaultAudio"}) {
		t.Fatalf("unexpected default channels: %v", cfg.Demux.Channels)
	}
	if cfg.Demux.LogName != "ffmpeg_output.txt" {
		t.Fatalf("unexpected log name: %q", cfg.Demux.LogName)
	}
	if cfg.Readiness.PollIntervalSeconds != 5 || cfg.Readiness.StableChecks != 2 {
		t.Fatalf("unexpected readiness defaults: %+v", cfg.Readiness)
	}
	if cfg.Workers.Count != 2 || cfg.Workers.QueueSize != 32 {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Workers)
	}
}

func TestDefaultChannelsNotShared(t *testing.T) {
	cfg := config.Default()
	cfg.Demux.Channels[0] = "9|Other"
	if config.DefaultChannels[0] != "0|Video" {
		t.Fatal("mutating a default config changed the package defaults")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if !filepath.IsAbs(cfg.Paths.StateDir) {
		t.Fatalf("expected state dir to be expanded, got %q", cfg.Paths.StateDir)
	}
}

func TestLoadParsesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OBS_WEBSOCKET_PASSWORD", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[obs]
host = "studio.local"
port = 4455
password = "hunter2"

[demux]
enabled = true
delete_source = true
channels = ["0|Video", "2|Mic", " 3 | Music "]
tool_timeout_seconds = 120

[readiness]
poll_interval_seconds = 1
max_wait_seconds = 60

[paths]
state_dir = "~/state"

[logging]
debug = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.OBSAddress() != "ws://studio.local:4455" {
		t.Fatalf("unexpected address %q", cfg.OBSAddress())
	}
	if cfg.OBS.Password != "hunter2" {
		t.Fatalf("unexpected password %q", cfg.OBS.Password)
	}
	if !cfg.Demux.Enabled || !cfg.Demux.DeleteSource {
		t.Fatalf("expected demux flags to be set: %+v", cfg.Demux)
	}
	if len(cfg.Demux.Channels) != 3 {
		t.Fatalf("unexpected channels %v", cfg.Demux.Channels)
	}
	if cfg.ToolTimeout() != 2*time.Minute {
		t.Fatalf("unexpected tool timeout %v", cfg.ToolTimeout())
	}
	if cfg.PollInterval() != time.Second || cfg.MaxWait() != time.Minute {
		t.Fatalf("unexpected readiness durations %v %v", cfg.PollInterval(), cfg.MaxWait())
	}
	if cfg.Paths.StateDir != filepath.Join(home, "state") {
		t.Fatalf("unexpected state dir %q", cfg.Paths.StateDir)
	}
	if cfg.LogLevel() != "debug" {
		t.Fatalf("expected debug switch to force debug level, got %q", cfg.LogLevel())
	}
	if cfg.DatabasePath() != filepath.Join(home, "state", "jobs.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[demux]\nchanels = [\"0\"]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected misspelled key to be rejected")
	}
}

func TestPasswordEnvFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OBS_WEBSOCKET_PASSWORD", "from-env")

	cfg, err := config.Parse([]byte("[obs]\nport = 4444\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.OBS.Password != "from-env" {
		t.Fatalf("expected env password, got %q", cfg.OBS.Password)
	}

	cfg, err = config.Parse([]byte("[obs]\npassword = \"explicit\"\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.OBS.Password != "explicit" {
		t.Fatalf("explicit password should win, got %q", cfg.OBS.Password)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "port too low", content: "[obs]\nport = 80\n", want: "obs.port"},
		{name: "port too high", content: "[obs]\nport = 70000\n", want: "obs.port"},
		{name: "empty track id", content: "[demux]\nchannels = [\"|Video\"]\n", want: "demux.channels"},
		{name: "duplicate output", content: "[demux]\nchannels = [\"1|Audio\", \"2|Audio\"]\n", want: "demux.channels"},
		{name: "enabled without channels", content: "[demux]\nenabled = true\nchannels = []\n", want: "demux.channels"},
		{name: "negative tool timeout", content: "[demux]\ntool_timeout_seconds = -1\n", want: "tool_timeout_seconds"},
		{name: "zero poll", content: "[readiness]\npoll_interval_seconds = 0\n", want: "poll_interval_seconds"},
		{name: "zero stable checks", content: "[readiness]\nstable_checks = 0\n", want: "stable_checks"},
		{name: "zero workers", content: "[workers]\ncount = 0\n", want: "workers.count"},
		{name: "bad format", content: "[logging]\nformat = \"xml\"\n", want: "logging.format"},
		{name: "bad level", content: "[logging]\nlevel = \"loud\"\n", want: "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.content))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := config.Parse([]byte(config.SampleConfig()))
	if err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	defaults := config.Default()
	if !reflect.DeepEqual(cfg.Demux.Channels, defaults.Demux.Channels) {
		t.Fatalf("sample channels %v differ from defaults %v", cfg.Demux.Channels, defaults.Demux.Channels)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[demux]") {
		t.Fatal("sample missing demux section")
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	if info, err := os.Stat(cfg.LogDir()); err != nil || !info.IsDir() {
		t.Fatalf("expected log dir to exist: %v", err)
	}
}

package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"obsdemux/internal/config"
)

// ConfigOption adjusts a test config. base is the per-test temp root.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns defaults rooted in a fresh temp directory, with readiness
// tuned so jobs settle within a second or two.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Logging.RetentionDays = 0
	cfg.Readiness.PollIntervalSeconds = 1
	cfg.Readiness.MaxWaitSeconds = 10
	cfg.Readiness.StableChecks = 1

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// BaseDir is the temp root NewConfig created for cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WithDemuxEnabled enables demuxing, optionally replacing the channel list.
func WithDemuxEnabled(channels ...string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Demux.Enabled = true
		if len(channels) > 0 {
			cfg.Demux.Channels = channels
		}
	}
}

// WithDeleteSource removes recordings after a clean run.
func WithDeleteSource() ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Demux.DeleteSource = true
	}
}

// WithFakeFFmpeg installs the ffmpeg stub exiting with exitCode.
func WithFakeFFmpeg(exitCode int) ConfigOption {
	return func(t testing.TB, base string, cfg *config.Config) {
		cfg.Demux.FFmpegBinary = WriteFakeFFmpeg(t, filepath.Join(base, "bin"), exitCode)
	}
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg by default)
// at the front of PATH for the duration of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		dir := filepath.Join(base, "path-bin")
		for _, name := range names {
			writeExecutable(t, filepath.Join(dir, name), "#!/bin/sh\nexit 0\n")
		}
		t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

func writeExecutable(t testing.TB, path, script string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

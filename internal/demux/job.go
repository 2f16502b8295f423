package demux

import (
	"time"

	"github.com/google/uuid"

	"obsdemux/internal/channelmap"
	"obsdemux/internal/readiness"
)

// WorkDirSuffix is appended to the source path to name the output directory.
const WorkDirSuffix = "_demux"

// DefaultLogName is the tool log written inside the work directory.
const DefaultLogName = "ffmpeg_output.txt"

// Options captures the settings a job is built from.
type Options struct {
	Mapping         channelmap.Mapping
	Tool            string
	DeleteOnSuccess bool
	ReadyPolicy     readiness.Policy
	LogName         string
	ToolTimeout     time.Duration
}

// Job is an immutable unit of demux work.
type Job struct {
	ID              string
	SourcePath      string
	WorkDir         string
	Args            []string
	Outputs         []string
	DeleteOnSuccess bool
	Tool            string
	ReadyPolicy     readiness.Policy
	LogName         string
	ToolTimeout     time.Duration
	CreatedAt       time.Time
}

// NewJob snapshots opts for sourcePath under a fresh job id.
func NewJob(sourcePath string, opts Options) Job {
	logName := opts.LogName
	if logName == "" {
		logName = DefaultLogName
	}
	tool := opts.Tool
	if tool == "" {
		tool = "ffmpeg"
	}
	return Job{
		ID:              uuid.NewString(),
		SourcePath:      sourcePath,
		WorkDir:         sourcePath + WorkDirSuffix,
		Args:            opts.Mapping.Args(),
		Outputs:         opts.Mapping.Outputs(),
		DeleteOnSuccess: opts.DeleteOnSuccess,
		Tool:            tool,
		ReadyPolicy:     opts.ReadyPolicy,
		LogName:         logName,
		ToolTimeout:     opts.ToolTimeout,
		CreatedAt:       time.Now(),
	}
}

// CommandArgs returns the arguments passed to the tool.
func (j Job) CommandArgs() []string {
	args := make([]string, 0, len(j.Args)+2)
	args = append(args, "-i", j.SourcePath)
	return append(args, j.Args...)
}

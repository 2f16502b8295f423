package channelmap

import (
	"errors"
	"fmt"
	"strings"
)

const (
	videoTrackID   = "0"
	videoExtension = "mkv"
	audioExtension = "m4a"
	separator      = "|"
)

var (
	// ErrEmptyTrackID is returned when a channel entry has no track id.
	ErrEmptyTrackID = errors.New("channel track id is empty")
	// ErrDuplicateOutput is returned when two channels would write the same file.
	ErrDuplicateOutput = errors.New("duplicate channel output")
)

// ChannelSpec is one parsed channel entry.
type ChannelSpec struct {
	TrackID    string
	OutputName string
}

// Extension returns the output container extension for the channel.
func (c ChannelSpec) Extension() string {
	if c.TrackID == videoTrackID {
		return videoExtension
	}
	return audioExtension
}

// OutputFile returns the file name written inside the job work directory.
func (c ChannelSpec) OutputFile() string {
	return c.OutputName + "." + c.Extension()
}

// String renders the channel in its configuration form.
func (c ChannelSpec) String() string {
	return c.TrackID + separator + c.OutputName
}

// Parse splits a raw "id|name" entry on the first separator. The output name
// defaults to the track id when omitted or blank.
func Parse(raw string) (ChannelSpec, error) {
	id, name, _ := strings.Cut(raw, separator)
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return ChannelSpec{}, fmt.Errorf("parse channel %q: %w", raw, ErrEmptyTrackID)
	}
	if name == "" {
		name = id
	}
	return ChannelSpec{TrackID: id, OutputName: name}, nil
}

// Mapping is the compiled, ordered form of a channel list.
type Mapping struct {
	channels []ChannelSpec
	args     []string
}

// Compile parses every entry in order and emits one "-map 0:<id> <file>"
// triple per channel. Track ids may repeat; output files may not.
func Compile(raw []string) (Mapping, error) {
	channels := make([]ChannelSpec, 0, len(raw))
	args := make([]string, 0, len(raw)*3)
	seen := make(map[string]int, len(raw))
	for idx, entry := range raw {
		spec, err := Parse(entry)
		if err != nil {
			return Mapping{}, fmt.Errorf("channel %d: %w", idx+1, err)
		}
		file := spec.OutputFile()
		if prev, ok := seen[file]; ok {
			return Mapping{}, fmt.Errorf("channel %d: %w: %s already written by channel %d", idx+1, ErrDuplicateOutput, file, prev+1)
		}
		seen[file] = idx
		channels = append(channels, spec)
		args = append(args, "-map", "0:"+spec.TrackID, file)
	}
	return Mapping{channels: channels, args: args}, nil
}

// MustCompile is like Compile but panics on error. Intended for defaults and tests.
func MustCompile(raw []string) Mapping {
	m, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return m
}

// Args returns a copy of the compiled argument sequence.
func (m Mapping) Args() []string {
	out := make([]string, len(m.args))
	copy(out, m.args)
	return out
}

// Outputs lists the output file names in channel order.
func (m Mapping) Outputs() []string {
	out := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch.OutputFile())
	}
	return out
}

// Channels returns a copy of the parsed channel entries.
func (m Mapping) Channels() []ChannelSpec {
	out := make([]ChannelSpec, len(m.channels))
	copy(out, m.channels)
	return out
}

// Len reports the number of channels.
func (m Mapping) Len() int { return len(m.channels) }

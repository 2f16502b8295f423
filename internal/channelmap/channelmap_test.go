package channelmap_test

import (
	"errors"
	"reflect"
	"testing"

	"obsdemux/internal/channelmap"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want channelmap.ChannelSpec
	}{
		{raw: "5|Comm", want: channelmap.ChannelSpec{TrackID: "5", OutputName: "Comm"}},
		{raw: "5", want: channelmap.ChannelSpec{TrackID: "5", OutputName: "5"}},
		{raw: "  1 | Desktop Audio ", want: channelmap.ChannelSpec{TrackID: "1", OutputName: "Desktop Audio"}},
		{raw: "2|", want: channelmap.ChannelSpec{TrackID: "2", OutputName: "2"}},
		{raw: "3|Mic|Left", want: channelmap.ChannelSpec{TrackID: "3", OutputName: "Mic|Left"}},
	}
	for _, tt := range tests {
		got, err := channelmap.Parse(tt.raw)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestParseRejectsEmptyTrackID(t *testing.T) {
	for _, raw := range []string{"", "   ", "|Video"} {
		if _, err := channelmap.Parse(raw); !errors.Is(err, channelmap.ErrEmptyTrackID) {
			t.Fatalf("Parse(%q) error = %v, want ErrEmptyTrackID", raw, err)
		}
	}
}

func TestExtensionHeuristic(t *testing.T) {
	video, _ := channelmap.Parse("0")
	if video.Extension() != "mkv" {
		t.Fatalf("track 0 extension = %q, want mkv", video.Extension())
	}
	audio, _ := channelmap.Parse("2")
	if audio.Extension() != "m4a" {
		t.Fatalf("track 2 extension = %q, want m4a", audio.Extension())
	}
}

func TestCompilePreservesOrder(t *testing.T) {
	m, err := channelmap.Compile([]string{"2|Mic", "0|Video", "1|Desktop"})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	want := []string{
		"-map", "0:2", "Mic.m4a",
		"-map", "0:0", "Video.mkv",
		"-map", "0:1", "Desktop.m4a",
	}
	if got := m.Args(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Args() = %v, want %v", got, want)
	}
	if got := m.Outputs(); !reflect.DeepEqual(got, []string{"Mic.m4a", "Video.mkv", "Desktop.m4a"}) {
		t.Fatalf("Outputs() = %v", got)
	}
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
}

func TestCompileOneTriplePerChannel(t *testing.T) {
	lists := [][]string{
		nil,
		{"0"},
		{"0|Video", "1|DefaultAudio"},
		{"1|A", "2|B", "3|C", "4|D", "5|E"},
	}
	for _, list := range lists {
		m, err := channelmap.Compile(list)
		if err != nil {
			t.Fatalf("Compile(%v) returned error: %v", list, err)
		}
		args := m.Args()
		if len(args) != 3*len(list) {
			t.Fatalf("Compile(%v) produced %d args, want %d", list, len(args), 3*len(list))
		}
		for i := 0; i < len(args); i += 3 {
			if args[i] != "-map" {
				t.Fatalf("arg %d = %q, want -map", i, args[i])
			}
		}
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	list := []string{"0|Video", "1|Audio"}
	first := channelmap.MustCompile(list)
	second := channelmap.MustCompile(list)
	if !reflect.DeepEqual(first.Args(), second.Args()) {
		t.Fatalf("compilation not deterministic: %v vs %v", first.Args(), second.Args())
	}
}

func TestArgsReturnsCopy(t *testing.T) {
	m := channelmap.MustCompile([]string{"0|Video"})
	args := m.Args()
	args[0] = "mutated"
	if m.Args()[0] != "-map" {
		t.Fatal("mutating Args() result leaked into mapping")
	}
}

func TestCompileAllowsDuplicateTrackIDs(t *testing.T) {
	m, err := channelmap.Compile([]string{"1|Stream", "1|Archive"})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
}

func TestCompileRejectsDuplicateOutputs(t *testing.T) {
	_, err := channelmap.Compile([]string{"1|Audio", "2|Audio"})
	if !errors.Is(err, channelmap.ErrDuplicateOutput) {
		t.Fatalf("Compile error = %v, want ErrDuplicateOutput", err)
	}
}

func TestCompileDistinctExtensionsDoNotCollide(t *testing.T) {
	if _, err := channelmap.Compile([]string{"0|Show", "1|Show"}); err != nil {
		t.Fatalf("Show.mkv and Show.m4a should not collide: %v", err)
	}
}

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// Config carries everything needed to launch the two pipeline legs. It is
// read once at Start and never mutated afterwards.
type Config struct {
	FFmpegBin string
	SinkBin   string
	SinkArgs  []string

	InputFormat string
	MicDevice   string
	MusicPath   string

	SampleRate int
	Channels   int
	MicGain    float64

	// ControlEndpoint is where the azmq filter binds its REP socket,
	// e.g. "tcp://127.0.0.1:5555".
	ControlEndpoint string
}

// filterGraph builds the mixing graph. Filter order matters: the music
// volume must be the second parsed volume instance so that runtime commands
// addressed to "Parsed_volume_1" land on it. The music leg starts muted; the
// control loop raises it when the camera goes active.
func filterGraph(cfg Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[0:a]volume=%s[mic];", strconv.FormatFloat(cfg.MicGain, 'f', -1, 64))
	b.WriteString("[1:a]volume=0[bg];")
	fmt.Fprintf(&b, "[mic][bg]amix=inputs=2:duration=longest:dropout_transition=0,aresample=%d,", cfg.SampleRate)
	fmt.Fprintf(&b, "azmq=bind_address=%s", escapeFilterOption(cfg.ControlEndpoint))
	return b.String()
}

// escapeFilterOption escapes ':' for use inside a filter option value, where
// a bare colon would terminate the option.
func escapeFilterOption(s string) string {
	return strings.ReplaceAll(s, ":", "\\:")
}

// mixerArgs builds the ffmpeg invocation: live mic plus endlessly looping
// music, mixed through filterGraph, raw s16le on stdout.
func mixerArgs(cfg Config) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-fflags", "nobuffer",
		"-f", cfg.InputFormat,
		"-i", cfg.MicDevice,
		"-stream_loop", "-1",
		"-i", cfg.MusicPath,
		"-filter_complex", filterGraph(cfg),
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"pipe:1",
	}
}

// sinkArgs builds the playback invocation. A configured SinkArgs list wins
// wholesale (for pacat, aplay and friends); the default suits ffplay reading
// raw samples from stdin.
func sinkArgs(cfg Config) []string {
	if len(cfg.SinkArgs) > 0 {
		return cfg.SinkArgs
	}
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nodisp",
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-",
	}
}

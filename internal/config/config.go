package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

const DefaultPath = "config/camduck.json"

type AppConfig struct {
	Logging  LoggingConfig  `json:"logging"`
	Audio    AudioConfig    `json:"audio"`
	Pipeline PipelineConfig `json:"pipeline"`
	Control  ControlConfig  `json:"control"`
	Ducking  DuckingConfig  `json:"ducking"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type AudioConfig struct {
	SampleRate  int         `json:"sample_rate"`
	Channels    int         `json:"channels"`
	InputFormat string      `json:"input_format"`
	MicDevice   string      `json:"mic_device"`
	MicGain     float64     `json:"mic_gain"`
	Music       MusicConfig `json:"music"`
}

type MusicConfig struct {
	Path       string  `json:"path"`
	ActiveGain float64 `json:"active_gain"`
}

type PipelineConfig struct {
	FFmpegBin string   `json:"ffmpeg_bin"`
	SinkBin   string   `json:"sink_bin"`
	SinkArgs  []string `json:"sink_args"`
	Warmup    Duration `json:"warmup"`
}

type ControlConfig struct {
	Endpoint  string   `json:"endpoint"`
	FilterTag string   `json:"filter_tag"`
	Parameter string   `json:"parameter"`
	Timeout   Duration `json:"timeout"`
}

type DuckingConfig struct {
	PollInterval   Duration `json:"poll_interval"`
	DebounceWindow Duration `json:"debounce_window"`
}

type MetricsConfig struct {
	Addr string `json:"addr"`
}

// Duration is a time.Duration that unmarshals from JSON strings like "500ms".
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(v) * time.Millisecond)
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(data))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{},
		Audio: AudioConfig{
			SampleRate:  48000,
			Channels:    2,
			InputFormat: defaultInputFormat(),
			MicDevice:   "default",
			MicGain:     1.0,
			Music: MusicConfig{
				ActiveGain: 0.2,
			},
		},
		Pipeline: PipelineConfig{
			FFmpegBin: "ffmpeg",
			SinkBin:   "ffplay",
			Warmup:    Duration(2 * time.Second),
		},
		Control: ControlConfig{
			Endpoint:  "tcp://127.0.0.1:5555",
			FilterTag: "Parsed_volume_1",
			Parameter: "volume",
			Timeout:   Duration(time.Second),
		},
		Ducking: DuckingConfig{
			PollInterval:   Duration(time.Second),
			DebounceWindow: Duration(5 * time.Second),
		},
		Metrics: MetricsConfig{},
	}
}

// defaultInputFormat picks the ffmpeg capture demuxer for the host OS.
func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}
	if endpoint := strings.TrimSpace(os.Getenv("CAMDUCK_CONTROL_ENDPOINT")); endpoint != "" {
		c.Control.Endpoint = endpoint
	}
	if music := strings.TrimSpace(os.Getenv("CAMDUCK_MUSIC")); music != "" {
		c.Audio.Music.Path = music
	}
}

func (c *AppConfig) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if c.Audio.Channels <= 0 {
		return errors.New("audio.channels must be positive")
	}
	if c.Audio.MicGain < 0 {
		return errors.New("audio.mic_gain must be non-negative")
	}
	if strings.TrimSpace(c.Audio.Music.Path) == "" {
		return errors.New("audio.music.path is required")
	}
	if c.Audio.Music.ActiveGain < 0 || c.Audio.Music.ActiveGain > 1 {
		return errors.New("audio.music.active_gain must be within [0, 1]")
	}
	if strings.TrimSpace(c.Audio.InputFormat) == "" {
		return errors.New("audio.input_format is required")
	}
	if strings.TrimSpace(c.Pipeline.FFmpegBin) == "" {
		return errors.New("pipeline.ffmpeg_bin is required")
	}
	if strings.TrimSpace(c.Pipeline.SinkBin) == "" {
		return errors.New("pipeline.sink_bin is required")
	}
	if strings.TrimSpace(c.Control.Endpoint) == "" {
		return errors.New("control.endpoint is required")
	}
	if strings.TrimSpace(c.Control.FilterTag) == "" {
		return errors.New("control.filter_tag is required")
	}
	if c.Ducking.PollInterval.Std() <= 0 {
		return errors.New("ducking.poll_interval must be positive")
	}
	if c.Ducking.DebounceWindow.Std() <= 0 {
		return errors.New("ducking.debounce_window must be positive")
	}
	return nil
}

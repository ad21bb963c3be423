package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ProjectFile is the per-project config file name, looked up in the working directory.
const ProjectFile = ".gazetrace.toml"

// Config holds all configurable gazetrace settings.
type Config struct {
	OutputDir   string `toml:"output_dir"`   // relative to the project root unless absolute
	TraceFormat string `toml:"trace_format"` // "xml" | "json" | "yaml"
	IDE         string `toml:"ide"`          // host identity written into the trace header
	Realtime    bool   `toml:"realtime"`

	Log         LogConfig         `toml:"log"`
	Tracker     TrackerConfig     `toml:"tracker"`
	Screen      ScreenConfig      `toml:"screen"`
	Calibration CalibrationConfig `toml:"calibration"`
	Tolerance   ToleranceConfig   `toml:"tolerance"`
	Stimulus    StimulusConfig    `toml:"stimulus"`
	NATS        NATSConfig        `toml:"nats"`
	API         APIConfig         `toml:"api"`

	// keys lists the dotted keys present in the file this config was decoded from.
	// nil for configs built in code.
	keys map[string]bool
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// TrackerConfig describes the containerised tracker process.
type TrackerConfig struct {
	ImageBase      string        `toml:"image_base"`
	ContainerName  string        `toml:"container_name"`
	ContainerPort  int           `toml:"container_port"`
	HostNetwork    string        `toml:"host_network"` // "auto" | "always" | "never"
	ProbeTimeout   time.Duration `toml:"probe_timeout"`
	CleanupTimeout time.Duration `toml:"cleanup_timeout"`
	StopTimeout    time.Duration `toml:"stop_timeout"`
}

type ScreenConfig struct {
	MonitorIndex int       `toml:"monitor_index"`
	Monitors     []Monitor `toml:"monitors"`
}

// Monitor is one physical display in virtual desktop coordinates.
type Monitor struct {
	X      int `toml:"x"`
	Y      int `toml:"y"`
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// CalibrationConfig is the pixel offset added after scaling normalized gaze.
type CalibrationConfig struct {
	OffsetX int `toml:"offset_x"`
	OffsetY int `toml:"offset_y"`
}

// ToleranceConfig is the slack allowed outside the visible area, per axis.
type ToleranceConfig struct {
	X int `toml:"x"`
	Y int `toml:"y"`
}

// StimulusConfig places the built-in monospace stimulus view on screen.
type StimulusConfig struct {
	X          int `toml:"x"`
	Y          int `toml:"y"`
	Width      int `toml:"width"`
	Height     int `toml:"height"`
	LineHeight int `toml:"line_height"`
	CharWidth  int `toml:"char_width"`
	PaddingX   int `toml:"padding_x"`
	PaddingY   int `toml:"padding_y"`
}

type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
	Token   string `toml:"token"`
}

type APIConfig struct {
	Addr string `toml:"addr"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		OutputDir:   ".gazetrace-data",
		TraceFormat: "xml",
		IDE:         "gazetrace",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracker: TrackerConfig{
			ImageBase:      "gazetrace/eyetracker",
			ContainerName:  "gazetrace-tracker",
			ContainerPort:  5000,
			HostNetwork:    "auto",
			ProbeTimeout:   5 * time.Second,
			CleanupTimeout: 3 * time.Second,
			StopTimeout:    5 * time.Second,
		},
		Screen: ScreenConfig{
			Monitors: []Monitor{{X: 0, Y: 0, Width: 1920, Height: 1080}},
		},
		Calibration: CalibrationConfig{OffsetX: 80, OffsetY: 80},
		Tolerance:   ToleranceConfig{X: 0, Y: 40},
		Stimulus: StimulusConfig{
			X: 0, Y: 100, Width: 1920, Height: 900,
			LineHeight: 20, CharWidth: 10,
			PaddingX: 40, PaddingY: 0,
		},
		NATS: NATSConfig{Subject: "gazetrace.gaze"},
		API:  APIConfig{Addr: "127.0.0.1:0"},
	}
}

// GlobalPath returns ~/.config/gazetrace/config.toml.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gazetrace", "config.toml"), nil
}

// LoadGlobal reads ~/.config/gazetrace/config.toml.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .gazetrace.toml in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(ProjectFile, false)
}

// LoadFile reads a single config file. Returns nil (no error) if it is absent.
func LoadFile(path string) (*Config, error) {
	return loadFile(path, false)
}

// loadFile reads and parses a TOML config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	cfg.keys = make(map[string]bool)
	for _, k := range md.Keys() {
		cfg.keys[k.String()] = true
	}
	return &cfg, nil
}

// set reports whether key should override the layer below.
// Decoded configs answer from the file's keys; code-built ones treat non-zero as set.
func (c *Config) set(key string, nonZero bool) bool {
	if c == nil {
		return false
	}
	if c.keys != nil {
		return c.keys[key]
	}
	return nonZero
}

func pick[T comparable](dst *T, c *Config, key string, v T) {
	var zero T
	if c.set(key, v != zero) {
		*dst = v
	}
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer == nil {
			continue
		}
		apply(&result, layer)
	}
	return result
}

func apply(dst *Config, c *Config) {
	pick(&dst.OutputDir, c, "output_dir", c.OutputDir)
	pick(&dst.TraceFormat, c, "trace_format", c.TraceFormat)
	pick(&dst.IDE, c, "ide", c.IDE)
	pick(&dst.Realtime, c, "realtime", c.Realtime)

	pick(&dst.Log.Level, c, "log.level", c.Log.Level)
	pick(&dst.Log.Format, c, "log.format", c.Log.Format)
	pick(&dst.Log.File, c, "log.file", c.Log.File)

	pick(&dst.Tracker.ImageBase, c, "tracker.image_base", c.Tracker.ImageBase)
	pick(&dst.Tracker.ContainerName, c, "tracker.container_name", c.Tracker.ContainerName)
	pick(&dst.Tracker.ContainerPort, c, "tracker.container_port", c.Tracker.ContainerPort)
	pick(&dst.Tracker.HostNetwork, c, "tracker.host_network", c.Tracker.HostNetwork)
	pick(&dst.Tracker.ProbeTimeout, c, "tracker.probe_timeout", c.Tracker.ProbeTimeout)
	pick(&dst.Tracker.CleanupTimeout, c, "tracker.cleanup_timeout", c.Tracker.CleanupTimeout)
	pick(&dst.Tracker.StopTimeout, c, "tracker.stop_timeout", c.Tracker.StopTimeout)

	pick(&dst.Screen.MonitorIndex, c, "screen.monitor_index", c.Screen.MonitorIndex)
	if c.set("screen.monitors", len(c.Screen.Monitors) > 0) {
		dst.Screen.Monitors = append([]Monitor(nil), c.Screen.Monitors...)
	}

	pick(&dst.Calibration.OffsetX, c, "calibration.offset_x", c.Calibration.OffsetX)
	pick(&dst.Calibration.OffsetY, c, "calibration.offset_y", c.Calibration.OffsetY)
	pick(&dst.Tolerance.X, c, "tolerance.x", c.Tolerance.X)
	pick(&dst.Tolerance.Y, c, "tolerance.y", c.Tolerance.Y)

	pick(&dst.Stimulus.X, c, "stimulus.x", c.Stimulus.X)
	pick(&dst.Stimulus.Y, c, "stimulus.y", c.Stimulus.Y)
	pick(&dst.Stimulus.Width, c, "stimulus.width", c.Stimulus.Width)
	pick(&dst.Stimulus.Height, c, "stimulus.height", c.Stimulus.Height)
	pick(&dst.Stimulus.LineHeight, c, "stimulus.line_height", c.Stimulus.LineHeight)
	pick(&dst.Stimulus.CharWidth, c, "stimulus.char_width", c.Stimulus.CharWidth)
	pick(&dst.Stimulus.PaddingX, c, "stimulus.padding_x", c.Stimulus.PaddingX)
	pick(&dst.Stimulus.PaddingY, c, "stimulus.padding_y", c.Stimulus.PaddingY)

	pick(&dst.NATS.URL, c, "nats.url", c.NATS.URL)
	pick(&dst.NATS.Subject, c, "nats.subject", c.NATS.Subject)
	pick(&dst.NATS.Token, c, "nats.token", c.NATS.Token)
	pick(&dst.API.Addr, c, "api.addr", c.API.Addr)
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

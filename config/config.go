package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/opd-ai/camfx/limits"
	"github.com/opd-ai/camfx/pipeline"
	"github.com/opd-ai/camfx/segment"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Bounds for numeric settings.
const (
	MinFrameRate = 1
	MaxFrameRate = 240
	MaxTolerance = 442
)

// Config is the full camfx configuration.
type Config struct {
	Capture      CaptureConfig      `yaml:"capture"`
	Render       RenderConfig       `yaml:"render"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Filter       FilterConfig       `yaml:"filter"`
	Preview      PreviewConfig      `yaml:"preview"`
	Log          LogConfig          `yaml:"log"`
}

// CaptureConfig is the resolution hint forced on camera requests.
type CaptureConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RenderConfig drives the render loop.
type RenderConfig struct {
	FrameRate      int  `yaml:"frame_rate"`
	MatrixCellSize int  `yaml:"matrix_cell_size"`
	DetailedStats  bool `yaml:"detailed_stats"`
}

// SegmentationConfig is fixed for the session.
type SegmentationConfig struct {
	ModelPath string  `yaml:"model_path"`
	Delegate  string  `yaml:"delegate"`
	KeyColor  string  `yaml:"key_color"`
	Tolerance float64 `yaml:"tolerance"`
}

// FilterConfig holds the initial selection.
type FilterConfig struct {
	Default string `yaml:"default"`
}

// PreviewConfig configures the preview server.
type PreviewConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	MaxWidth int    `yaml:"max_width"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := segment.DefaultOptions()
	return &Config{
		Capture: CaptureConfig{Width: 1280, Height: 720},
		Render:  RenderConfig{FrameRate: pipeline.DefaultFrameRate},
		Segmentation: SegmentationConfig{
			ModelPath: opts.ModelPath,
			Delegate:  opts.Delegate,
			KeyColor:  "#00b140",
			Tolerance: 90,
		},
		Filter:  FilterConfig{Default: pipeline.ModeNone.String()},
		Preview: PreviewConfig{Enabled: true, Addr: "127.0.0.1:8089", MaxWidth: 640},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
	}

	ApplyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Load",
		"path":       path,
		"capture":    fmt.Sprintf("%dx%d", cfg.Capture.Width, cfg.Capture.Height),
		"frame_rate": cfg.Render.FrameRate,
		"filter":     cfg.Filter.Default,
		"preview":    cfg.Preview.Enabled,
	}).Info("Configuration loaded")
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if err := limits.ValidateDimensions(c.Capture.Width, c.Capture.Height); err != nil {
		return fmt.Errorf("%w: capture: %v", ErrInvalid, err)
	}
	if c.Render.FrameRate < MinFrameRate || c.Render.FrameRate > MaxFrameRate {
		return fmt.Errorf("%w: frame_rate %d outside [%d, %d]", ErrInvalid, c.Render.FrameRate, MinFrameRate, MaxFrameRate)
	}
	if c.Render.MatrixCellSize < 0 {
		return fmt.Errorf("%w: matrix_cell_size %d", ErrInvalid, c.Render.MatrixCellSize)
	}
	if c.Segmentation.ModelPath == "" {
		return fmt.Errorf("%w: segmentation model_path is empty", ErrInvalid)
	}
	if _, err := segment.ParseKeyColor(c.Segmentation.KeyColor); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Segmentation.Tolerance < 0 || c.Segmentation.Tolerance > MaxTolerance {
		return fmt.Errorf("%w: tolerance %v outside [0, %d]", ErrInvalid, c.Segmentation.Tolerance, MaxTolerance)
	}
	if _, err := pipeline.ParseMode(c.Filter.Default); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Preview.Enabled && c.Preview.Addr == "" {
		return fmt.Errorf("%w: preview addr is empty", ErrInvalid)
	}
	if c.Preview.MaxWidth < 0 {
		return fmt.Errorf("%w: preview max_width %d", ErrInvalid, c.Preview.MaxWidth)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// SegmentOptions returns the engine options for the session.
func (c *Config) SegmentOptions() segment.Options {
	opts := segment.DefaultOptions()
	opts.ModelPath = c.Segmentation.ModelPath
	opts.Delegate = c.Segmentation.Delegate
	return opts
}

// ApplyEnv overrides cfg from CAMFX_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	envInt(lookup, "CAMFX_CAPTURE_WIDTH", &cfg.Capture.Width, 1, limits.MaxFrameWidth)
	envInt(lookup, "CAMFX_CAPTURE_HEIGHT", &cfg.Capture.Height, 1, limits.MaxFrameHeight)
	envInt(lookup, "CAMFX_FRAME_RATE", &cfg.Render.FrameRate, MinFrameRate, MaxFrameRate)
	envString(lookup, "CAMFX_MODEL_PATH", &cfg.Segmentation.ModelPath)
	envString(lookup, "CAMFX_DELEGATE", &cfg.Segmentation.Delegate)
	envString(lookup, "CAMFX_PREVIEW_ADDR", &cfg.Preview.Addr)

	if v, ok := lookup("CAMFX_FILTER"); ok && v != "" {
		if _, err := pipeline.ParseMode(v); err != nil {
			warnEnv("CAMFX_FILTER", v, err, cfg.Filter.Default)
		} else {
			cfg.Filter.Default = v
		}
	}
	if v, ok := lookup("CAMFX_LOG_LEVEL"); ok && v != "" {
		if _, err := logrus.ParseLevel(v); err != nil {
			warnEnv("CAMFX_LOG_LEVEL", v, err, cfg.Log.Level)
		} else {
			cfg.Log.Level = v
		}
	}
}

func envInt(lookup func(string) (string, bool), name string, dst *int, lo, hi int) {
	v, ok := lookup(name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		warnEnv(name, v, err, *dst)
		return
	}
	if n < lo || n > hi {
		warnEnv(name, v, fmt.Errorf("outside [%d, %d]", lo, hi), *dst)
		return
	}
	*dst = n
}

func envString(lookup func(string) (string, bool), name string, dst *string) {
	if v, ok := lookup(name); ok && v != "" {
		*dst = v
	}
}

func warnEnv(name, value string, err error, using interface{}) {
	logrus.WithFields(logrus.Fields{
		"function":    "ApplyEnv",
		"env_var":     name,
		"value":       value,
		"error":       err.Error(),
		"using_value": using,
	}).Warn("Ignoring invalid environment override")
}

// ConfigureLogging applies the log settings to the standard logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	logrus.SetLevel(level)
	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

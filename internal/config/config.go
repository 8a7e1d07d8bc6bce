// Package config handles service configuration
package config

import (
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	apperrors "github.com/hudpulse/hudpulse/internal/errors"
)

// DefaultFile is probed when HUDPULSE_CONFIG is unset.
const DefaultFile = "hudpulse.yaml"

// Debug controls per-tick diagnostics. Profile-level debug settings win
// over these when a profile carries its own block.
type Debug struct {
	LogValues      bool   `yaml:"log_values" env:"HUDPULSE_DEBUG"`
	LogEveryNTicks int    `yaml:"log_every_n_ticks" env:"HUDPULSE_DEBUG_EVERY_N"`
	SaveROIImages  bool   `yaml:"save_roi_images" env:"HUDPULSE_DEBUG_SAVE"`
	SaveDir        string `yaml:"save_dir" env:"HUDPULSE_DEBUG_DIR"`
}

type Config struct {
	HTTPAddr         string `yaml:"http_addr" env:"HUDPULSE_HTTP_ADDR"`
	LogLevel         string `yaml:"log_level" env:"HUDPULSE_LOG_LEVEL"`
	ProfilePath      string `yaml:"profile_path" env:"HUDPULSE_PROFILE"`
	TemplateDir      string `yaml:"template_dir" env:"HUDPULSE_TEMPLATE_DIR"`
	StillImagePath   string `yaml:"still_image" env:"HUDPULSE_STILL_IMAGE"`
	EventBuffer      int    `yaml:"event_buffer" env:"HUDPULSE_EVENT_BUFFER"`
	CaptureTimeoutMS int    `yaml:"capture_timeout_ms" env:"HUDPULSE_CAPTURE_TIMEOUT_MS"`
	Debug            Debug  `yaml:"debug"`
}

// Default returns the built-in configuration. YAML and environment
// values layer on top of it, in that order.
func Default() Config {
	return Config{
		HTTPAddr:         ":8000",
		LogLevel:         "info",
		TemplateDir:      "templates",
		EventBuffer:      64,
		CaptureTimeoutMS: 2000,
		Debug: Debug{
			LogEveryNTicks: 30,
			SaveDir:        "hudpulse_debug",
		},
	}
}

// Load builds the config: defaults, then the YAML file named by
// HUDPULSE_CONFIG (or ./hudpulse.yaml when present), then environment
// overrides.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("HUDPULSE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "parse config file %s", path)
		}
	case explicit:
		return nil, apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "read config file %s", path)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the assembled config.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "http_addr must not be empty")
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown log_level %q", c.LogLevel)
	}
	if c.EventBuffer < 1 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "event_buffer must be >= 1, got %d", c.EventBuffer)
	}
	if c.CaptureTimeoutMS <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "capture_timeout_ms must be positive, got %d", c.CaptureTimeoutMS)
	}
	if c.Debug.LogEveryNTicks < 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "log_every_n_ticks must not be negative, got %d", c.Debug.LogEveryNTicks)
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps the configured log level to slog.
func (c *Config) SlogLevel() slog.Level {
	return logLevels[c.LogLevel]
}

// Package config loads process settings from CALZONE_* environment
// variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chazu/calzone/pkg/geometry"
	"github.com/chazu/calzone/pkg/mesh"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment prefix of every setting.
const Prefix = "CALZONE"

type Config struct {
	Algorithm         mesh.Algorithm `envconfig:"ALGORITHM"`
	CheckResolution   int            `envconfig:"CHECK_RESOLUTION" default:"1000"`
	EnvelopeSafety    float64        `envconfig:"ENVELOPE_SAFETY_CM" default:"0.01"`
	EvalTimeout       time.Duration  `envconfig:"EVAL_TIMEOUT" default:"5s"`
	LogLevel          string         `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string         `envconfig:"LOG_FORMAT" default:"text"`
	TessellationCells int            `envconfig:"TESSELLATION_CELLS" default:"200"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.CheckResolution <= 0 {
		return nil, fmt.Errorf("config: %s_CHECK_RESOLUTION must be positive, got %d", Prefix, cfg.CheckResolution)
	}
	if cfg.EnvelopeSafety < 0 {
		return nil, fmt.Errorf("config: %s_ENVELOPE_SAFETY_CM must not be negative, got %g", Prefix, cfg.EnvelopeSafety)
	}
	if cfg.EvalTimeout <= 0 {
		return nil, fmt.Errorf("config: %s_EVAL_TIMEOUT must be positive, got %s", Prefix, cfg.EvalTimeout)
	}
	if cfg.TessellationCells <= 0 {
		return nil, fmt.Errorf("config: %s_TESSELLATION_CELLS must be positive, got %d", Prefix, cfg.TessellationCells)
	}
	if _, err := cfg.level(); err != nil {
		return nil, err
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("config: unknown log format %q (expected text or json)", cfg.LogFormat)
	}
	return &cfg, nil
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	return lvl, nil
}

// Logger returns a logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := c.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// BuildOptions returns the geometry options implied by the settings.
func (c *Config) BuildOptions(logger *slog.Logger) []geometry.Option {
	return []geometry.Option{
		geometry.WithLogger(logger),
		geometry.WithAlgorithm(c.Algorithm),
		geometry.WithEnvelopeSafety(c.EnvelopeSafety),
	}
}

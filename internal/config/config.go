// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting the hexflower binary reads.
type Config struct {
	DBPath        string   `env:"HEXFLOWER_DB_PATH" envDefault:"data/hexflower.db"`
	Port          int      `env:"HEXFLOWER_PORT" envDefault:"8080"`
	AdminKey      string   `env:"HEXFLOWER_ADMIN_KEY"`
	Wrap          bool     `env:"HEXFLOWER_WRAP" envDefault:"false"`
	MinRadius     int      `env:"HEXFLOWER_MIN_RADIUS" envDefault:"1"`
	MaxRadius     int      `env:"HEXFLOWER_MAX_RADIUS" envDefault:"10"`
	DefaultRadius int      `env:"HEXFLOWER_DEFAULT_RADIUS" envDefault:"2"`
	RollSeed      int64    `env:"HEXFLOWER_ROLL_SEED" envDefault:"0"`
	RandomOrgKey  string   `env:"RANDOM_ORG_API_KEY"`
	LogLevel      string   `env:"HEXFLOWER_LOG_LEVEL" envDefault:"info"`
	CORSOrigins   []string `env:"HEXFLOWER_CORS_ORIGINS" envSeparator:","`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the radius bounds.
func (c Config) Validate() error {
	if c.MinRadius < 1 {
		return fmt.Errorf("min radius %d must be at least 1", c.MinRadius)
	}
	if c.MaxRadius < c.MinRadius {
		return fmt.Errorf("max radius %d below min radius %d", c.MaxRadius, c.MinRadius)
	}
	if c.DefaultRadius < c.MinRadius || c.DefaultRadius > c.MaxRadius {
		return fmt.Errorf("default radius %d outside [%d,%d]", c.DefaultRadius, c.MinRadius, c.MaxRadius)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

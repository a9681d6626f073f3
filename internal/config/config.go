// Package config loads storyflow CLI settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
	StoreRedis  = "redis"
)

// Config holds the CLI settings.
type Config struct {
	Program       string        `env:"STORYFLOW_PROGRAM"`
	Session       string        `env:"STORYFLOW_SESSION" envDefault:"default"`
	Store         string        `env:"STORYFLOW_STORE" envDefault:"memory"`
	StoreDSN      string        `env:"STORYFLOW_STORE_DSN"`
	StoreTTL      time.Duration `env:"STORYFLOW_STORE_TTL" envDefault:"0s"`
	Seed          string        `env:"STORYFLOW_SEED"`
	Waypoints     []string      `env:"STORYFLOW_WAYPOINTS" envSeparator:","`
	MaxIterations int           `env:"STORYFLOW_MAX_ITERATIONS" envDefault:"10000"`
	Tick          time.Duration `env:"STORYFLOW_TICK" envDefault:"50ms"`
	MetricsAddr   string        `env:"STORYFLOW_METRICS_ADDR"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the optional dotenv files, then parses the environment.
// Variables already set in the environment win over dotenv values. Missing
// dotenv files are ignored.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that env parsing cannot.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreMySQL, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.Store != StoreMemory && c.StoreDSN == "" {
		return fmt.Errorf("store %s requires STORYFLOW_STORE_DSN", c.Store)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", c.Tick)
	}
	return nil
}

// Logger builds a slog.Logger from LogLevel and LogFormat.
func (c Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

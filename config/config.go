// Package config loads runtime settings for the qicore binary: an optional
// YAML file, then QICORE_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the binary. An empty DB selects the
// in-memory repository.
type Config struct {
	DB               string        `yaml:"db" env:"QICORE_DB"`
	Content          string        `yaml:"content" env:"QICORE_CONTENT"`
	FlushInterval    time.Duration `yaml:"flush_interval" env:"QICORE_FLUSH_INTERVAL"`
	FlushParallelism int           `yaml:"flush_parallelism" env:"QICORE_FLUSH_PARALLELISM"`
	LogLevel         string        `yaml:"log_level" env:"QICORE_LOG_LEVEL"`
	Seed             int64         `yaml:"seed" env:"QICORE_SEED"`
	CacheCapacity    int           `yaml:"cache_capacity" env:"QICORE_CACHE_CAPACITY"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:               "qicore.db",
		Content:          "content",
		FlushInterval:    30 * time.Second,
		FlushParallelism: 4,
		LogLevel:         "info",
		Seed:             1,
		CacheCapacity:    64,
	}
}

// Load starts from Default, overlays the YAML file at path (skipped when
// path is empty) and then the environment. Unknown YAML keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// Validate rejects settings the binary cannot run with.
func (c Config) Validate() error {
	if c.Content == "" {
		return errors.New("content directory is required")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive, got %s", c.FlushInterval)
	}
	if c.FlushParallelism < 1 {
		return fmt.Errorf("flush_parallelism must be at least 1, got %d", c.FlushParallelism)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("cache_capacity must be at least 1, got %d", c.CacheCapacity)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level. Call after Validate.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Package config loads spikemon's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ftahirops/spikemon/engine"
	"github.com/ftahirops/spikemon/model"
)

// Config holds defaults for the live and batch commands.
// Command-line flags override every field.
type Config struct {
	IntervalMs           int64              `yaml:"interval_ms"`
	Thresholds           model.Thresholds   `yaml:"thresholds"`
	MinSpikeDurationSecs int64              `yaml:"min_spike_duration_secs"`
	TopNProcs            int                `yaml:"top_n_procs"`
	Output               string             `yaml:"output"`
	LogFile              string             `yaml:"log_file"`
	Sampler              string             `yaml:"sampler"`
	MetricsAddr          string             `yaml:"metrics_addr"`
	Alerts               engine.AlertConfig `yaml:"alerts"`
}

// Default returns a config with no thresholds set.
func Default() Config {
	return Config{
		IntervalMs:           1000,
		MinSpikeDurationSecs: 3,
		TopNProcs:            0,
		Output:               "text",
		Sampler:              "procfs",
	}
}

// Path returns $XDG_CONFIG_HOME/spikemon/config.yaml (or ~/.config/...).
// Returns empty string if home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "spikemon", "config.yaml")
}

// Parse decodes YAML over the defaults. Keys absent from data keep their
// default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Validate rejects values no flag could have produced.
func (c Config) Validate() error {
	if c.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be positive, got %d", c.IntervalMs)
	}
	if c.MinSpikeDurationSecs < 0 {
		return fmt.Errorf("min_spike_duration_secs must not be negative, got %d", c.MinSpikeDurationSecs)
	}
	if c.TopNProcs < 0 {
		return fmt.Errorf("top_n_procs must not be negative, got %d", c.TopNProcs)
	}
	return nil
}

// Load reads the config at path (Path() when empty). A missing file yields
// the defaults silently; an unreadable or invalid file yields the defaults
// with a warning.
func Load(path string, logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if path == "" {
		path = Path()
	}
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("config unreadable, using defaults", "path", path, "err", err)
		}
		return Default()
	}
	cfg, err := Parse(data)
	if err != nil {
		logger.Warn("config invalid, using defaults", "path", path, "err", err)
		return Default()
	}
	logger.Debug("config loaded", "path", path)
	return cfg
}

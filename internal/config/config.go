// Package config holds the engine configuration and the YAML workflow
// definition files the CLI assembles workflows from.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds engine configuration.
type Config struct {
	// Workers is the worker pool size used by the executor.
	Workers int `yaml:"workers"`

	// DBPath is the SQLite database path for run persistence.
	// Empty disables persistence; ":memory:" is useful for testing.
	DBPath string `yaml:"db_path"`

	// WorkDir is the root of per-task scratch directories.
	WorkDir string `yaml:"work_dir"`

	// Addr is the monitoring API listen address.
	Addr string `yaml:"addr"`

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Workers:   4,
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

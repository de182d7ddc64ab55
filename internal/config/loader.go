package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the sharing tools.
// Zero values mean "unspecified" and keep the built-in defaults.
type Config struct {
	// ScratchDir pins the file-based store's directory; empty uses a fresh
	// temp directory per store. A leading '~' is expanded.
	ScratchDir string `json:"scratch_dir" yaml:"scratch_dir" toml:"scratch_dir"`
	// DisableSHM forces the file-based store even where shared memory works.
	DisableSHM bool `json:"disable_shm" yaml:"disable_shm" toml:"disable_shm"`
	// Workers is the batch scoring parallelism (0 = one per CPU).
	Workers int `json:"workers" yaml:"workers" toml:"workers"`
	// MetricsAddr, when set, serves Prometheus metrics during bench runs.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr" toml:"metrics_addr"`
	// LogLevel is a zerolog level name (debug|info|warn|error).
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if cfg.ScratchDir != "" {
		dir, err := expandHome(cfg.ScratchDir)
		if err != nil {
			return cfg, err
		}
		cfg.ScratchDir = dir
	}
	return cfg, nil
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// Package config loads driver-level defaults from an optional
// .pep517run.yaml file, walked for upward from the project root — the
// yaml.v3 + struct-tag convention rimraf-adi-zephyr's BuildMeta and
// PEP518Config use for their own on-disk configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the ambient defaults a caller can override per-invocation
// but need not specify every time.
type Config struct {
	// ResponseTimeout bounds how long a command waits for its response
	// file before the frontend treats the backend as unresponsive.
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	// Reuse is the default reuse-mode setting for new Frontends.
	Reuse bool `yaml:"reuse"`
	// Interpreter overrides pep517run-host discovery.
	Interpreter string `yaml:"interpreter"`
	// OutputDir is the default output directory for build artifacts,
	// relative to the project root unless absolute.
	OutputDir string `yaml:"output_dir"`
}

// Default returns the configuration used when no .pep517run.yaml is found.
func Default() Config {
	return Config{
		ResponseTimeout: 5 * time.Minute,
		Reuse:           true,
		OutputDir:       "dist",
	}
}

// rawConfig mirrors Config but with a plain string duration field, since
// yaml.v3 has no native time.Duration support.
type rawConfig struct {
	ResponseTimeout string `yaml:"response_timeout"`
	Reuse           *bool  `yaml:"reuse"`
	Interpreter     string `yaml:"interpreter"`
	OutputDir       string `yaml:"output_dir"`
}

// Load walks upward from startDir looking for .pep517run.yaml, merging it
// over Default(). A missing file is not an error.
func Load(startDir string) (Config, error) {
	cfg := Default()

	path, err := findConfigFile(startDir)
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if raw.ResponseTimeout != "" {
		d, err := time.ParseDuration(raw.ResponseTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("config: response_timeout: %w", err)
		}
		cfg.ResponseTimeout = d
	}
	if raw.Reuse != nil {
		cfg.Reuse = *raw.Reuse
	}
	if raw.Interpreter != "" {
		cfg.Interpreter = raw.Interpreter
	}
	if raw.OutputDir != "" {
		cfg.OutputDir = raw.OutputDir
	}

	return cfg, nil
}

func findConfigFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("config: resolving %s: %w", startDir, err)
	}

	for {
		candidate := filepath.Join(dir, ".pep517run.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

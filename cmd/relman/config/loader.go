// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath returns ~/.relman/relman.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".relman", "relman.yaml"), nil
}

// Load reads, defaults, and validates the configuration at path.
// An empty path means DefaultPath. On first run the default config
// file is created and the operator is told where to edit it.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "first run detected, creating config at %s\n", path)
		if err := createDefault(path); err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.PointerName == "" {
		c.Store.PointerName = "active_release"
	}
	if c.Service.MaxStale == 0 {
		c.Service.MaxStale = Duration(90 * time.Second)
	}
	if c.Service.MaxIdle == 0 {
		c.Service.MaxIdle = Duration(10 * time.Minute)
	}
	if c.Build.Jobs == 0 {
		c.Build.Jobs = 8
	}
	if c.Build.InstallScript == "" {
		c.Build.InstallScript = "scripts/install_all.sh"
	}
	if c.Build.CollectedDir == "" {
		c.Build.CollectedDir = "build/out"
	}
	if len(c.Build.ProbeDirs) == 0 {
		c.Build.ProbeDirs = []string{"build/out", "build/bin", "src"}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

const defaultYAML = `# relman configuration
log_level: info
log_dir: ~/.relman/logs

store:
  root: /opt/driftd/releases
  pointer_name: active_release

service:
  binary_name: driftd
  max_stale: 90s
  max_idle: 10m

build:
  jobs: 8
  install_script: scripts/install_all.sh
  collected_dir: build/out
  # custom_output_root: build/obj
  probe_dirs:
    - build/out
    - build/bin
    - src

# Ordered classification table. Suffix rules win over prefix rules;
# exactly one variant must have no match rules (the default).
variants:
  - name: performance-fork
    repo_url: https://github.com/driftline/driftd-perf.git
    workdir: /opt/src/driftd-perf
    match_suffix: "-perf"
  - name: downstream-fork
    repo_url: https://github.com/driftline/driftd.git
    workdir: /opt/src/driftd
    match_prefix: "dl-"
    confirm: true
  - name: upstream
    repo_url: https://github.com/driftnet/driftd.git
    workdir: /opt/src/driftd-upstream
    confirm: true
`

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultYAML), 0640); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

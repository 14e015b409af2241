// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the relman configuration file.
//
// The configuration is read once at process start and passed by value
// into every component; there is no mutable global state.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Duration wraps time.Duration with yaml support for strings like "90s".
type Duration time.Duration

// UnmarshalYAML parses durations in time.ParseDuration syntax.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back in time.Duration syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete relman configuration.
type Config struct {
	// Store configures the version store and active release pointer.
	Store StoreConfig `yaml:"store" validate:"required"`

	// Service describes the managed daemon.
	Service ServiceConfig `yaml:"service" validate:"required"`

	// Build configures the build toolchain invocation.
	Build BuildConfig `yaml:"build"`

	// Variants is the ordered source-variant classification table.
	Variants []VariantConfig `yaml:"variants" validate:"required,min=1,dive"`

	// Lock configures the advisory operation lock.
	Lock LockSettings `yaml:"lock"`

	// LogLevel is one of debug/info/warn/error. Default: info.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// LogDir enables file logging when set (~ expansion supported).
	LogDir string `yaml:"log_dir"`
}

// StoreConfig configures the version store layout.
type StoreConfig struct {
	// Root is the directory holding version entries and the pointer.
	Root string `yaml:"root" validate:"required"`

	// PointerName is the active release pointer's name under Root.
	// Default: "active_release".
	PointerName string `yaml:"pointer_name"`

	// Owner is the user that should own the store root and working
	// copies. Default: the invoking user.
	Owner string `yaml:"owner"`
}

// ServiceConfig describes the long-running daemon relman manages
// releases for. relman never supervises the daemon; it only verifies
// the binary and sends the out-of-band graceful-exit command.
type ServiceConfig struct {
	// BinaryName is the critical service executable (e.g. "driftd").
	BinaryName string `yaml:"binary_name" validate:"required"`

	// MaxStale bounds how stale in-flight work may be before the
	// daemon honors a graceful exit. Default: 90s.
	MaxStale Duration `yaml:"max_stale"`

	// MaxIdle bounds how long the daemon waits for activity to drain
	// before exiting. Default: 10m.
	MaxIdle Duration `yaml:"max_idle"`
}

// BuildConfig configures how a checked-out revision is built.
type BuildConfig struct {
	// Jobs is the default compiler parallelism, overridable with -j.
	Jobs int `yaml:"jobs" validate:"omitempty,gte=1"`

	// InstallScript is the project-provided install-all procedure,
	// relative to the working copy. Preferred over the direct
	// compiler fallback because it embeds build metadata and
	// collects every produced binary into CollectedDir.
	InstallScript string `yaml:"install_script"`

	// CollectedDir is where InstallScript collects binaries,
	// relative to the working copy.
	CollectedDir string `yaml:"collected_dir"`

	// CustomOutputRoot, when the toolchain is configured with an
	// out-of-tree output root, points at it (relative to the working
	// copy). When the install script fails, this takes precedence
	// over CollectedDir so stale artifacts from a previous build are
	// never shipped.
	CustomOutputRoot string `yaml:"custom_output_root"`

	// ProbeDirs are the well-known locations (relative to the
	// working copy) searched for the critical binary after a failed
	// install script, in order.
	ProbeDirs []string `yaml:"probe_dirs"`
}

// VariantConfig is one row of the source-variant table.
type VariantConfig struct {
	// Name identifies the variant in prompts and logs.
	Name string `yaml:"name" validate:"required"`

	// RepoURL is the upstream repository locator.
	RepoURL string `yaml:"repo_url" validate:"required"`

	// Workdir is the local working copy path for this variant.
	Workdir string `yaml:"workdir" validate:"required"`

	// MatchSuffix classifies revisions ending with this token.
	// Suffix rules are checked before prefix rules.
	MatchSuffix string `yaml:"match_suffix"`

	// MatchPrefix classifies revisions starting with this token.
	MatchPrefix string `yaml:"match_prefix"`

	// Confirm requires interactive confirmation before building
	// from this variant.
	Confirm bool `yaml:"confirm"`
}

// IsDefault reports whether this variant is the catch-all row.
func (v VariantConfig) IsDefault() bool {
	return v.MatchSuffix == "" && v.MatchPrefix == ""
}

// LockSettings configures the advisory operation lock.
type LockSettings struct {
	// Dir is the lock file directory. Default: os.TempDir().
	Dir string `yaml:"dir"`
}

// Validate checks struct tags plus cross-field rules the tags cannot
// express. The returned error is operator-facing.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	defaults := 0
	names := make(map[string]bool, len(c.Variants))
	for _, v := range c.Variants {
		if names[v.Name] {
			return fmt.Errorf("invalid configuration: duplicate variant name %q", v.Name)
		}
		names[v.Name] = true
		if v.IsDefault() {
			defaults++
		}
	}
	if defaults != 1 {
		return fmt.Errorf("invalid configuration: exactly one variant must have no match rules (the default), found %d", defaults)
	}
	return nil
}

// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"strings"
	"testing"
)

// TestParseLevel verifies config strings map to the right levels.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"  error  ", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// TestLevelFiltering verifies entries below the minimum level are dropped.
func TestLevelFiltering(t *testing.T) {
	out := &bytes.Buffer{}
	logger := New(Config{Level: LevelWarn, Output: out})
	defer logger.Close()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	text := out.String()
	if strings.Contains(text, "debug message") || strings.Contains(text, "info message") {
		t.Errorf("filtered levels leaked into output: %q", text)
	}
	if !strings.Contains(text, "warn message") || !strings.Contains(text, "error message") {
		t.Errorf("expected warn and error messages in output: %q", text)
	}
}

// TestSinkReceivesEntries verifies the sink sees filtered entries with attrs.
func TestSinkReceivesEntries(t *testing.T) {
	sink := NewBufferedSink()
	logger := New(Config{Level: LevelInfo, Quiet: true, Service: "relman", Sink: sink})
	defer logger.Close()

	logger.Debug("too quiet")
	logger.Info("pointer swapped", "version", "v1.2.0-perf")

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 sink entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "pointer swapped" {
		t.Errorf("unexpected message %q", entry.Message)
	}
	if entry.Service != "relman" {
		t.Errorf("unexpected service %q", entry.Service)
	}
	if entry.Attrs["version"] != "v1.2.0-perf" {
		t.Errorf("unexpected attrs %v", entry.Attrs)
	}
}

// TestWithPropagatesAttributes verifies child loggers keep parent destinations.
func TestWithPropagatesAttributes(t *testing.T) {
	out := &bytes.Buffer{}
	logger := New(Config{Level: LevelInfo, Output: out})
	defer logger.Close()

	child := logger.With("operation", "rollback")
	child.Info("selected entry")

	text := out.String()
	if !strings.Contains(text, "operation=rollback") {
		t.Errorf("child attribute missing from output: %q", text)
	}
}

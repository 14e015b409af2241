// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import (
	"errors"
	"fmt"
	"testing"
)

// TestCommandError_Error verifies message formats.
func TestCommandError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CommandError
		expected string
	}{
		{
			"stderr takes priority",
			NewCommandError("rsync -a a/ b/", 23, " permission denied \n", errors.New("exit status 23")),
			"rsync -a a/ b/ (exit 23): permission denied",
		},
		{
			"wrapped used when no stderr",
			NewCommandError("make -j8", 2, "", errors.New("exit status 2")),
			"make -j8 (exit 2): exit status 2",
		},
		{
			"bare",
			NewCommandError("driftd --version", 1, "", nil),
			"driftd --version (exit 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestCommandError_Unwrap verifies errors.As through wrapping layers.
func TestCommandError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	cmdErr := NewCommandError("git fetch", 128, "fatal: not a repository", inner)
	wrapped := fmt.Errorf("resolving working copy: %w", cmdErr)

	var extracted *CommandError
	if !errors.As(wrapped, &extracted) {
		t.Fatal("errors.As failed to find CommandError")
	}
	if extracted.ExitCode != 128 {
		t.Errorf("ExitCode = %d, want 128", extracted.ExitCode)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("errors.Is failed to reach the wrapped error")
	}
	if got := ExtractStderr(wrapped); got != "fatal: not a repository" {
		t.Errorf("ExtractStderr() = %q", got)
	}
	if got := ExitCodeOf(wrapped); got != 128 {
		t.Errorf("ExitCodeOf() = %d, want 128", got)
	}
	if got := ExitCodeOf(errors.New("plain")); got != -1 {
		t.Errorf("ExitCodeOf(plain) = %d, want -1", got)
	}
}

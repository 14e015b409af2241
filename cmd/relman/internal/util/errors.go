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
	"strings"
)

// ErrCancelled is returned when the operator declines a confirmation
// or cancels an interactive selection. Callers map it to a non-zero
// exit without treating it as an internal failure.
var ErrCancelled = errors.New("cancelled by operator")

// =============================================================================
// Command Error Type
// =============================================================================

// CommandError wraps an external command failure with stderr context.
//
// # Description
//
// Provides rich error context for command failures: the command that
// failed, its exit code, and trimmed stderr output. Implements the
// error interface and supports unwrapping via errors.Is/As.
//
// # Thread Safety
//
// CommandError is immutable after creation and safe for concurrent reads.
//
// # Example
//
//	err := NewCommandError("rsync -a src/ dst/", 23, "permission denied", rawErr)
//	var cmdErr *CommandError
//	if errors.As(err, &cmdErr) {
//	    fmt.Println(cmdErr.ExitCode)
//	}
type CommandError struct {
	// Command is the command that was executed.
	Command string

	// ExitCode is the process exit code (-1 if unknown).
	ExitCode int

	// Stderr contains the trimmed standard error output.
	Stderr string

	// Wrapped is the underlying error (may be nil).
	Wrapped error
}

// Error returns a message including the command, exit code, and
// stderr if present. Stderr takes priority over the wrapped error.
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// HasStderr reports whether any stderr output was captured.
func (e *CommandError) HasStderr() bool {
	return strings.TrimSpace(e.Stderr) != ""
}

// NewCommandError builds a CommandError with trimmed stderr.
func NewCommandError(cmd string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  cmd,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// ExtractStderr pulls stderr text out of an error chain, returning
// "" when no CommandError is present.
func ExtractStderr(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Stderr
	}
	return ""
}

// ExitCodeOf pulls the exit code out of an error chain, returning
// -1 when no CommandError is present.
func ExitCodeOf(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}

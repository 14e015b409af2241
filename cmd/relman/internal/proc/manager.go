// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package proc abstracts external process execution for relman.

Every exec.Command call in the release-management flows goes through
the Manager interface so builds, ownership fixes, artifact syncs, and
daemon signals can be mocked in unit tests. The package also provides
the flock-based OperationLock that serializes mutating operations.
*/
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/driftline/relman/cmd/relman/internal/util"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Manager handles external process operations.
//
// # Description
//
// Abstracts all interaction with the operating system's process
// management. Failures are returned as *util.CommandError carrying
// the exit code and trimmed stderr.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple
// goroutines.
//
// # Context Handling
//
// All methods accept a context; long-running commands (clones,
// builds, artifact syncs) are killed when it is cancelled.
type Manager interface {
	// Run executes a command and returns its stdout on success.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunIn executes a command in dir with extra environment entries
	// appended to the inherited environment. dir and env may be
	// empty. Returns stdout on success.
	RunIn(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)

	// RunStreaming executes a command in dir with combined output
	// streamed to w as it is produced. Used for build invocations
	// whose progress the operator needs to see live.
	RunStreaming(ctx context.Context, dir string, env []string, w io.Writer, name string, args ...string) error

	// LookPath reports the absolute path of an executable, or an
	// error if it is not on PATH.
	LookPath(name string) (string, error)
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultManager executes real processes with os/exec.
type DefaultManager struct{}

// NewDefaultManager returns a production process manager.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// Run executes a command synchronously and returns its stdout.
func (m *DefaultManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.RunIn(ctx, "", nil, name, args...)
}

// RunIn executes a command in dir with extra environment entries.
func (m *DefaultManager) RunIn(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, util.NewCommandError(renderCommand(name, args), exitCode(err), stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

// RunStreaming executes a command with combined output streamed to w.
func (m *DefaultManager) RunStreaming(ctx context.Context, dir string, env []string, w io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}

	// Keep a bounded-ish tail of stderr for the error message while
	// still streaming everything to the operator.
	var stderrTail bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = io.MultiWriter(w, &stderrTail)

	if err := cmd.Run(); err != nil {
		return util.NewCommandError(renderCommand(name, args), exitCode(err), lastLines(stderrTail.String(), 10), err)
	}
	return nil
}

// LookPath resolves an executable on PATH.
func (m *DefaultManager) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func renderCommand(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// Mock Implementation for Testing
// =============================================================================

// Call records a single Manager invocation for verification.
type Call struct {
	Method string
	Dir    string
	Env    []string
	Name   string
	Args   []string
}

// MockManager is a test double for Manager. Configure it by setting
// function fields; a nil field panics when its method is called so
// unexpected commands fail loudly in tests.
type MockManager struct {
	RunFunc          func(ctx context.Context, name string, args ...string) ([]byte, error)
	RunInFunc        func(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)
	RunStreamingFunc func(ctx context.Context, dir string, env []string, w io.Writer, name string, args ...string) error
	LookPathFunc     func(name string) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Run delegates to RunFunc and records the call.
func (m *MockManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record(Call{Method: "Run", Name: name, Args: args})
	if m.RunFunc == nil {
		panic(fmt.Sprintf("MockManager.RunFunc not set (command: %s)", renderCommand(name, args)))
	}
	return m.RunFunc(ctx, name, args...)
}

// RunIn delegates to RunInFunc, falling back to RunFunc.
func (m *MockManager) RunIn(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	m.record(Call{Method: "RunIn", Dir: dir, Env: env, Name: name, Args: args})
	if m.RunInFunc != nil {
		return m.RunInFunc(ctx, dir, env, name, args...)
	}
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args...)
	}
	panic(fmt.Sprintf("MockManager.RunInFunc not set (command: %s)", renderCommand(name, args)))
}

// RunStreaming delegates to RunStreamingFunc and records the call.
func (m *MockManager) RunStreaming(ctx context.Context, dir string, env []string, w io.Writer, name string, args ...string) error {
	m.record(Call{Method: "RunStreaming", Dir: dir, Env: env, Name: name, Args: args})
	if m.RunStreamingFunc == nil {
		panic(fmt.Sprintf("MockManager.RunStreamingFunc not set (command: %s)", renderCommand(name, args)))
	}
	return m.RunStreamingFunc(ctx, dir, env, w, name, args...)
}

// LookPath delegates to LookPathFunc; default resolves everything.
func (m *MockManager) LookPath(name string) (string, error) {
	m.record(Call{Method: "LookPath", Name: name})
	if m.LookPathFunc == nil {
		return "/usr/bin/" + name, nil
	}
	return m.LookPathFunc(name)
}

// Calls returns a copy of all recorded invocations.
func (m *MockManager) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockManager) record(c Call) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// Compile-time interface compliance checks.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)

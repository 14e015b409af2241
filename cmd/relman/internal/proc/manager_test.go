// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proc

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/driftline/relman/cmd/relman/internal/util"
)

// TestDefaultManager_Run verifies stdout capture and error classification.
func TestDefaultManager_Run(t *testing.T) {
	m := NewDefaultManager()
	ctx := context.Background()

	out, err := m.Run(ctx, "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("Run() output = %q, want hello", out)
	}
}

// TestDefaultManager_Run_CommandError verifies failures carry exit code
// and stderr through a CommandError.
func TestDefaultManager_Run_CommandError(t *testing.T) {
	m := NewDefaultManager()
	ctx := context.Background()

	_, err := m.Run(ctx, "sh", "-c", "echo broken >&2; exit 3")
	if err == nil {
		t.Fatal("Run() should have failed")
	}
	var cmdErr *util.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error is not a CommandError: %v", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if cmdErr.Stderr != "broken" {
		t.Errorf("Stderr = %q, want broken", cmdErr.Stderr)
	}
}

// TestDefaultManager_RunIn verifies working directory and env injection.
func TestDefaultManager_RunIn(t *testing.T) {
	m := NewDefaultManager()
	ctx := context.Background()
	dir := t.TempDir()

	out, err := m.RunIn(ctx, dir, []string{"RELMAN_COMMIT=abc123"}, "sh", "-c", "pwd; echo $RELMAN_COMMIT")
	if err != nil {
		t.Fatalf("RunIn() failed: %v", err)
	}
	text := string(out)
	if !strings.Contains(text, dir) {
		t.Errorf("command did not run in %q: %q", dir, text)
	}
	if !strings.Contains(text, "abc123") {
		t.Errorf("env entry not injected: %q", text)
	}
}

// TestDefaultManager_RunStreaming verifies output streams to the writer
// and failures keep a stderr tail.
func TestDefaultManager_RunStreaming(t *testing.T) {
	m := NewDefaultManager()
	ctx := context.Background()

	var buf bytes.Buffer
	err := m.RunStreaming(ctx, "", nil, &buf, "sh", "-c", "echo building; echo collect failed >&2; exit 1")
	if err == nil {
		t.Fatal("RunStreaming() should have failed")
	}
	if !strings.Contains(buf.String(), "building") {
		t.Errorf("stdout not streamed: %q", buf.String())
	}
	var cmdErr *util.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error is not a CommandError: %v", err)
	}
	if !strings.Contains(cmdErr.Stderr, "collect failed") {
		t.Errorf("stderr tail missing: %q", cmdErr.Stderr)
	}
}

// TestMockManager_RecordsCalls verifies call recording for assertions.
func TestMockManager_RecordsCalls(t *testing.T) {
	mock := &MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("ok"), nil
		},
	}
	ctx := context.Background()

	if _, err := mock.Run(ctx, "sudo", "mkdir", "-p", "/opt/src"); err != nil {
		t.Fatalf("mock Run() failed: %v", err)
	}
	// RunIn falls back to RunFunc when RunInFunc is unset.
	if _, err := mock.RunIn(ctx, "/tmp", nil, "rsync", "-a", "a/", "b/"); err != nil {
		t.Fatalf("mock RunIn() failed: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "sudo" || calls[0].Args[0] != "mkdir" {
		t.Errorf("unexpected first call: %+v", calls[0])
	}
	if calls[1].Method != "RunIn" || calls[1].Dir != "/tmp" {
		t.Errorf("unexpected second call: %+v", calls[1])
	}
}

// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package release

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/relman/cmd/relman/internal/proc"
)

func TestSignalExitCommandShape(t *testing.T) {
	mgr := &proc.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		},
	}
	rc := NewRestartCoordinator("/srv/releases/active_release", "driftd",
		90*time.Second, 10*time.Minute, mgr, testLogger())

	require.NoError(t, rc.SignalExit(context.Background()))

	calls := mgr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/srv/releases/active_release/driftd", calls[0].Name)
	assert.Equal(t, []string{"exit", "--max-stale", "1m30s", "--max-idle", "10m0s"}, calls[0].Args)
}

func TestSignalExitFailureIsReported(t *testing.T) {
	mgr := &proc.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, errors.New("connection refused")
		},
	}
	rc := NewRestartCoordinator("/srv/releases/active_release", "driftd",
		time.Minute, time.Minute, mgr, testLogger())

	err := rc.SignalExit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manually")
}

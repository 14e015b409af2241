// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package release

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/driftline/relman/cmd/relman/internal/proc"
	"github.com/driftline/relman/pkg/logging"
)

// RestartCoordinator asks the running service to exit gracefully so
// its supervisor restarts it against the new pointer. The service is
// never supervised here; the exit command is out-of-band and a
// failure is the operator's to follow up on.
type RestartCoordinator struct {
	pointerPath string
	binary      string
	maxStale    time.Duration
	maxIdle     time.Duration
	proc        proc.Manager
	log         *logging.Logger
}

// NewRestartCoordinator wires a RestartCoordinator. maxStale bounds
// how stale in-flight work may get; maxIdle bounds the drain wait.
func NewRestartCoordinator(pointerPath, binaryName string, maxStale, maxIdle time.Duration, procMgr proc.Manager, logger *logging.Logger) *RestartCoordinator {
	return &RestartCoordinator{
		pointerPath: pointerPath,
		binary:      binaryName,
		maxStale:    maxStale,
		maxIdle:     maxIdle,
		proc:        procMgr,
		log:         logger,
	}
}

// SignalExit sends the graceful-exit command through the pointer.
// The caller decides whether a failure is fatal; after a successful
// swap it is reported as a warning since the artifacts are in place
// and the service can be bounced manually.
func (r *RestartCoordinator) SignalExit(ctx context.Context) error {
	bin := filepath.Join(r.pointerPath, r.binary)
	r.log.Info("signaling service exit",
		"binary", bin, "max_stale", r.maxStale.String(), "max_idle", r.maxIdle.String())

	_, err := r.proc.Run(ctx, bin, "exit",
		"--max-stale", r.maxStale.String(),
		"--max-idle", r.maxIdle.String())
	if err != nil {
		return fmt.Errorf("graceful exit command failed; restart %s manually: %w", r.binary, err)
	}
	return nil
}

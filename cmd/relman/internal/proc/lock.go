// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// OperationLocker serializes mutating relman operations.
//
// # Description
//
// The version store and the active release pointer are shared between
// invocations; two operators running upgrade and rollback at the same
// time would corrupt state. Every mutating operation (upgrade,
// rollback, clean) acquires this lock for its full duration and a
// concurrent invocation fails fast with the holder's PID.
//
// # Thread Safety
//
// Implementations provide inter-process synchronization only; use a
// given instance from a single goroutine.
type OperationLocker interface {
	// Acquire attempts a non-blocking exclusive lock.
	Acquire() error

	// Release releases the lock if held. Safe to call multiple times.
	Release() error

	// IsHeld reports whether this instance holds the lock.
	IsHeld() bool

	// HolderPID returns the PID recorded by the current holder,
	// or 0 if unknown.
	HolderPID() int
}

// LockConfig configures lock file placement.
type LockConfig struct {
	// LockDir is the directory for lock files. Default: os.TempDir().
	LockDir string

	// LockName is the base name for lock files. Default: "relman".
	LockName string
}

// DefaultLockConfig uses the system temp directory and "relman".
func DefaultLockConfig() LockConfig {
	return LockConfig{LockDir: os.TempDir(), LockName: "relman"}
}

// OperationLock implements OperationLocker with flock(2).
//
// # How It Works
//
//  1. Creates a lock file at {LockDir}/{LockName}.lock
//  2. Takes a non-blocking exclusive flock on it
//  3. Writes the holder PID to {LockDir}/{LockName}.pid
//  4. On release, removes the PID file and drops the flock
//
// # Limitations
//
//   - Advisory only; processes that don't check it are not stopped
//   - flock is unreliable on some network filesystems
//   - The OS releases the flock if the process crashes, so a stale
//     lock never outlives its holder
type OperationLock struct {
	config   LockConfig
	lockPath string
	pidPath  string
	lockFile *os.File
	held     bool
}

// NewOperationLock creates a lock instance without acquiring it.
func NewOperationLock(config LockConfig) *OperationLock {
	if config.LockDir == "" {
		config.LockDir = os.TempDir()
	}
	if config.LockName == "" {
		config.LockName = "relman"
	}
	return &OperationLock{
		config:   config,
		lockPath: filepath.Join(config.LockDir, config.LockName+".lock"),
		pidPath:  filepath.Join(config.LockDir, config.LockName+".pid"),
	}
}

// Acquire takes a non-blocking exclusive lock. If another relman
// instance holds it, the error names the holder PID when known.
func (l *OperationLock) Acquire() error {
	if l.held {
		return nil
	}

	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", l.lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid := l.readHolderPID(); pid > 0 {
				return fmt.Errorf("another relman operation is in progress (PID %d); "+
					"wait for it to finish or remove %s if stale", pid, l.pidPath)
			}
			return fmt.Errorf("another relman operation is in progress (check: lsof %s)", l.lockPath)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.lockFile = f
	l.held = true

	// PID file is best effort; the flock is the actual guard.
	_ = os.WriteFile(l.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)

	return nil
}

// Release drops the flock and removes the PID file.
func (l *OperationLock) Release() error {
	if !l.held || l.lockFile == nil {
		return nil
	}

	os.Remove(l.pidPath)
	err := unix.Flock(int(l.lockFile.Fd()), unix.LOCK_UN)

	// Closing releases the lock even if the explicit unlock failed.
	l.lockFile.Close()
	l.lockFile = nil
	l.held = false

	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// IsHeld reports local state only; it does not re-check the flock.
func (l *OperationLock) IsHeld() bool {
	return l.held
}

// HolderPID reads the PID file; 0 when absent or unparseable.
func (l *OperationLock) HolderPID() int {
	return l.readHolderPID()
}

// LockPath returns the lock file path, for error messages.
func (l *OperationLock) LockPath() string {
	return l.lockPath
}

func (l *OperationLock) readHolderPID() int {
	data, err := os.ReadFile(l.pidPath)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

var _ OperationLocker = (*OperationLock)(nil)

// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package release owns the active release pointer protocol and the
post-swap service restart.

The pointer is the only shared mutable object in the system. The
protocol keeps it in exactly one of two states — absent, or resolving
to a directory containing a verifiable service binary:

 1. The swap target is verified to contain the executable before
    anything is mutated.
 2. A live pointer is renamed to a timestamped backup, never deleted.
    A non-symlink at the pointer path is a fatal misconfiguration:
    the protocol never adopts or destroys an object it did not create.
 3. The new pointer is created and the binary is verified through it.
*/
package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/driftline/relman/cmd/relman/internal/proc"
	"github.com/driftline/relman/pkg/logging"
)

// backupStamp is the timestamp layout in pointer backup names.
const backupStamp = "20060102T150405"

// Report describes a completed (or partially completed) swap.
type Report struct {
	// Target is the artifact directory the pointer now resolves to.
	Target string

	// Backup is the path the previous pointer was renamed to; empty
	// when no pointer existed before.
	Backup string

	// Swapped reports whether the pointer was mutated. When Swap
	// returns an error with Swapped true, the pointer is in place but
	// verification failed and needs operator attention.
	Swapped bool

	// Warnings are non-fatal verification findings.
	Warnings []string
}

// Swapper performs the pointer transition.
type Swapper struct {
	pointerPath string
	binary      string
	proc        proc.Manager
	log         *logging.Logger
	now         func() time.Time
}

// NewSwapper wires a Swapper for the pointer at pointerPath guarding
// the service binary binaryName.
func NewSwapper(pointerPath, binaryName string, procMgr proc.Manager, logger *logging.Logger) *Swapper {
	return &Swapper{
		pointerPath: pointerPath,
		binary:      binaryName,
		proc:        procMgr,
		log:         logger,
		now:         time.Now,
	}
}

// PointerPath returns the pointer location this Swapper manages.
func (s *Swapper) PointerPath() string {
	return s.pointerPath
}

// Swap transitions the pointer to targetDir. op names the mutating
// operation (e.g. "upgrade", "rollback") and appears in the backup
// name.
//
// On a verification failure of the binary through the pointer's
// direct path, the returned Report has Swapped true and the error is
// non-nil: artifacts are in place, the pointer is left pointing at
// them, and the operator has to inspect manually.
func (s *Swapper) Swap(ctx context.Context, targetDir, op string) (Report, error) {
	rep := Report{Target: targetDir}

	// Never swap to an unverified target.
	binPath := filepath.Join(targetDir, s.binary)
	if !isExecutable(binPath) {
		return rep, fmt.Errorf("refusing to swap: %s is missing or not executable", binPath)
	}

	info, err := os.Lstat(s.pointerPath)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink == 0:
		return rep, fmt.Errorf(
			"%s exists but is not a symlink; manual intervention required before any release operation",
			s.pointerPath)
	case err == nil:
		backup := fmt.Sprintf("%s_%s_before_%s", s.pointerPath, s.now().UTC().Format(backupStamp), op)
		if err := os.Rename(s.pointerPath, backup); err != nil {
			return rep, fmt.Errorf("failed to back up active release pointer: %w", err)
		}
		rep.Backup = backup
		s.log.Info("pointer backed up", "backup", backup)
	case !os.IsNotExist(err):
		return rep, fmt.Errorf("failed to inspect %s: %w", s.pointerPath, err)
	}

	if err := os.Symlink(targetDir, s.pointerPath); err != nil {
		return rep, fmt.Errorf("failed to create active release pointer: %w", err)
	}
	rep.Swapped = true
	s.log.Info("pointer swapped", "target", targetDir, "operation", op)

	// Direct-path verification: the binary must self-report through
	// the pointer. Failure leaves the pointer in place.
	out, err := s.proc.Run(ctx, filepath.Join(s.pointerPath, s.binary), "--version")
	if err != nil {
		return rep, fmt.Errorf("pointer now resolves to %s but %s --version failed through it; inspect before restarting the service: %w",
			targetDir, s.binary, err)
	}
	s.log.Info("binary verified via pointer", "version", string(out))

	// Environment-resolution verification: what an interactive session
	// would see, from a neutral working directory with the pointer on
	// PATH. Failure only means the operator's environment is not set
	// up yet.
	if err := s.verifyViaPath(ctx); err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf(
			"%s does not resolve via PATH through the pointer; add %s to the service environment's PATH (%v)",
			s.binary, s.pointerPath, err))
	}

	return rep, nil
}

func (s *Swapper) verifyViaPath(ctx context.Context) error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	env := []string{"PATH=" + s.pointerPath + string(os.PathListSeparator) + os.Getenv("PATH")}
	_, err = s.proc.RunIn(ctx, home, env, s.binary, "--version")
	return err
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

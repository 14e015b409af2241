// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/driftline/relman/cmd/relman/internal/proc"
	"github.com/driftline/relman/pkg/logging"
)

// Resolver makes sure a variant's working copy exists, is owned by
// the invoking user, and is fresh.
//
// # Description
//
// Working copies may live under root-owned paths (/opt/src), so
// directory creation and ownership normalization are elevated
// operations routed through the process manager. Every failure here
// is fatal: there is no partial-resolution state.
type Resolver struct {
	proc  proc.Manager
	log   *logging.Logger
	owner string
}

// NewResolver creates a Resolver. owner is the user that should own
// working copies, normally the invoking user.
func NewResolver(procMgr proc.Manager, logger *logging.Logger, owner string) *Resolver {
	return &Resolver{proc: procMgr, log: logger, owner: owner}
}

// Ensure makes the variant's working copy present and writable.
//
// Missing workdir: create the parent path (elevated), hand ownership
// to the invoking user, then perform a full clone. Existing workdir:
// normalize ownership and fetch updates.
func (r *Resolver) Ensure(ctx context.Context, v Variant) error {
	if _, err := os.Stat(v.Workdir); os.IsNotExist(err) {
		r.log.Info("working copy missing, cloning", "variant", v.Name, "workdir", v.Workdir)

		if err := r.prepareOwnedPath(ctx, filepath.Dir(v.Workdir)); err != nil {
			return fmt.Errorf("failed to prepare working copy parent for %s: %w", v.Name, err)
		}
		if _, err := git.PlainCloneContext(ctx, v.Workdir, false, &git.CloneOptions{
			URL:  v.RepoURL,
			Tags: git.AllTags,
		}); err != nil {
			return fmt.Errorf("failed to clone %s from %s: %w", v.Name, v.RepoURL, err)
		}
		return nil
	}

	r.log.Debug("working copy present, refreshing", "variant", v.Name, "workdir", v.Workdir)

	if err := r.normalizeOwnership(ctx, v.Workdir); err != nil {
		return fmt.Errorf("failed to normalize ownership of %s: %w", v.Workdir, err)
	}

	wd, err := OpenWorkdir(v.Workdir)
	if err != nil {
		return err
	}
	if err := wd.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Tags:       git.AllTags,
		Force:      true,
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch updates for %s: %w", v.Name, err)
	}
	return nil
}

// PrepareStoreRoot applies the same create-and-own protocol to the
// version store root on first use.
func (r *Resolver) PrepareStoreRoot(ctx context.Context, root string) error {
	if _, err := os.Stat(root); err == nil {
		return r.normalizeOwnership(ctx, root)
	}
	return r.prepareOwnedPath(ctx, root)
}

func (r *Resolver) prepareOwnedPath(ctx context.Context, path string) error {
	if _, err := r.proc.Run(ctx, "sudo", "mkdir", "-p", path); err != nil {
		return fmt.Errorf("elevated mkdir failed: %w", err)
	}
	return r.normalizeOwnership(ctx, path)
}

func (r *Resolver) normalizeOwnership(ctx context.Context, path string) error {
	if _, err := r.proc.Run(ctx, "sudo", "chown", "-R", r.owner+":"+r.owner, path); err != nil {
		return fmt.Errorf("elevated chown to %s failed: %w", r.owner, err)
	}
	return nil
}

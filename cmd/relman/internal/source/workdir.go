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

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Workdir wraps a variant's local working copy for build operations.
//
// The working copy is never a source of truth for uncommitted work:
// checkouts are forced and local modifications are discardable by
// design.
type Workdir struct {
	repo *git.Repository
	path string
}

// OpenWorkdir opens an existing working copy.
func OpenWorkdir(path string) (*Workdir, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open working copy at %s: %w", path, err)
	}
	return &Workdir{repo: repo, path: path}, nil
}

// NewWorkdir wraps an already-open repository. Used by tests with
// in-memory or fixture repositories.
func NewWorkdir(repo *git.Repository, path string) *Workdir {
	return &Workdir{repo: repo, path: path}
}

// Path returns the working copy root.
func (w *Workdir) Path() string {
	return w.path
}

// CheckoutForce checks out the revision, discarding local changes.
//
// Resolution order: tag, local branch, remote branch (a local branch
// is created to track it). Returns the resolved commit hash and
// whether the revision is a movable branch (as opposed to a
// tag-like fixed reference).
func (w *Workdir) CheckoutForce(ctx context.Context, revision string) (commit string, movable bool, err error) {
	wt, err := w.repo.Worktree()
	if err != nil {
		return "", false, fmt.Errorf("failed to get worktree: %w", err)
	}

	// Tag first: fixed references never move, so no pull follows.
	if hash, err := w.repo.ResolveRevision(plumbing.Revision(plumbing.NewTagReferenceName(revision))); err == nil {
		if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
			return "", false, fmt.Errorf("failed to check out tag %q: %w", revision, err)
		}
		commit, err = w.Head()
		return commit, false, err
	}

	// Local branch.
	localRef := plumbing.NewBranchReferenceName(revision)
	if _, err := w.repo.Reference(localRef, true); err == nil {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: localRef, Force: true}); err != nil {
			return "", false, fmt.Errorf("failed to check out branch %q: %w", revision, err)
		}
		commit, err = w.Head()
		return commit, true, err
	}

	// Remote branch: create a local tracking branch at its tip.
	remoteRef, err := w.repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, revision), true)
	if err != nil {
		return "", false, fmt.Errorf("revision %q not found as tag or branch: %w", revision, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Hash:   remoteRef.Hash(),
		Branch: localRef,
		Create: true,
		Force:  true,
	}); err != nil {
		return "", false, fmt.Errorf("failed to check out remote branch %q: %w", revision, err)
	}
	commit, err = w.Head()
	return commit, true, err
}

// PullBranch fast-forwards the currently checked-out branch from its
// remote. Already-up-to-date is not an error. Callers treat failures
// here as warnings: the build proceeds against whatever commit is
// checked out.
func (w *Workdir) PullBranch(ctx context.Context) error {
	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName: git.DefaultRemoteName,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull latest for checked-out branch: %w", err)
	}
	return nil
}

// SyncSubmodules recursively initializes and updates all submodules.
func (w *Workdir) SyncSubmodules(ctx context.Context) error {
	wt, err := w.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	subs, err := wt.Submodules()
	if err != nil {
		return fmt.Errorf("failed to enumerate submodules: %w", err)
	}
	if err := subs.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
		Init:              true,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}); err != nil {
		return fmt.Errorf("failed to sync submodules: %w", err)
	}
	return nil
}

// Head returns the current commit hash.
func (w *Workdir) Head() (string, error) {
	head, err := w.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
)

// TestWorkdir_CheckoutForce_Tag verifies tags resolve as fixed refs.
func TestWorkdir_CheckoutForce_Tag(t *testing.T) {
	dir := t.TempDir()
	repo := initTestRepo(t, dir)
	first, err := repo.Head()
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	tagTestRepo(t, repo, "v1.0.0", first.Hash())
	commitTestFile(t, repo, dir, "later.txt", "later\n", "second commit")

	wd := NewWorkdir(repo, dir)
	commit, movable, err := wd.CheckoutForce(context.Background(), "v1.0.0")
	if err != nil {
		t.Fatalf("CheckoutForce(tag) failed: %v", err)
	}
	if movable {
		t.Error("tag checkout should not be movable")
	}
	if commit != first.Hash().String() {
		t.Errorf("checked out %s, want %s", commit, first.Hash())
	}
}

// TestWorkdir_CheckoutForce_Branch verifies branches are movable.
func TestWorkdir_CheckoutForce_Branch(t *testing.T) {
	dir := t.TempDir()
	repo := initTestRepo(t, dir)
	tip := commitTestFile(t, repo, dir, "b.txt", "b\n", "tip commit")

	wd := NewWorkdir(repo, dir)
	commit, movable, err := wd.CheckoutForce(context.Background(), "master")
	if err != nil {
		t.Fatalf("CheckoutForce(branch) failed: %v", err)
	}
	if !movable {
		t.Error("branch checkout should be movable")
	}
	if commit != tip.String() {
		t.Errorf("checked out %s, want %s", commit, tip)
	}
}

// TestWorkdir_CheckoutForce_DiscardsLocalChanges verifies the forced,
// destructive checkout: the working copy holds no uncommitted truth.
func TestWorkdir_CheckoutForce_DiscardsLocalChanges(t *testing.T) {
	dir := t.TempDir()
	repo := initTestRepo(t, dir)
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	tagTestRepo(t, repo, "v1.0.0", head.Hash())

	// Dirty the tracked file.
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("scribble\n"), 0644); err != nil {
		t.Fatalf("dirtying file failed: %v", err)
	}

	wd := NewWorkdir(repo, dir)
	if _, _, err := wd.CheckoutForce(context.Background(), "v1.0.0"); err != nil {
		t.Fatalf("CheckoutForce over dirty tree failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		t.Fatalf("reading file failed: %v", err)
	}
	if string(content) != "initial\n" {
		t.Errorf("local modification not discarded: %q", content)
	}
}

// TestWorkdir_CheckoutForce_MissingRevision verifies absent revisions fail.
func TestWorkdir_CheckoutForce_MissingRevision(t *testing.T) {
	dir := t.TempDir()
	repo := initTestRepo(t, dir)

	wd := NewWorkdir(repo, dir)
	if _, _, err := wd.CheckoutForce(context.Background(), "does-not-exist"); err == nil {
		t.Error("missing revision should fail")
	}
}

// TestWorkdir_PullBranch verifies a clone fast-forwards to upstream.
func TestWorkdir_PullBranch(t *testing.T) {
	upstreamDir := t.TempDir()
	upstream := initTestRepo(t, upstreamDir)

	cloneDir := t.TempDir()
	clone, err := git.PlainClone(cloneDir, false, &git.CloneOptions{URL: upstreamDir})
	if err != nil {
		t.Fatalf("PlainClone failed: %v", err)
	}

	// Upstream moves after the clone.
	newTip := commitTestFile(t, upstream, upstreamDir, "new.txt", "new\n", "upstream moved")

	wd := NewWorkdir(clone, cloneDir)
	if err := wd.PullBranch(context.Background()); err != nil {
		t.Fatalf("PullBranch failed: %v", err)
	}
	head, err := wd.Head()
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head != newTip.String() {
		t.Errorf("head = %s, want %s", head, newTip)
	}

	// A second pull with nothing new is not an error.
	if err := wd.PullBranch(context.Background()); err != nil {
		t.Errorf("up-to-date PullBranch failed: %v", err)
	}
}

// TestWorkdir_SyncSubmodules_NoSubmodules verifies the no-op case.
func TestWorkdir_SyncSubmodules_NoSubmodules(t *testing.T) {
	dir := t.TempDir()
	repo := initTestRepo(t, dir)

	wd := NewWorkdir(repo, dir)
	if err := wd.SyncSubmodules(context.Background()); err != nil {
		t.Errorf("SyncSubmodules on repo without submodules failed: %v", err)
	}
}

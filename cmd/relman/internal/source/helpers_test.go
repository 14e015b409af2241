// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initTestRepo creates a non-bare repository with one initial commit.
func initTestRepo(t *testing.T, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}
	commitTestFile(t, repo, dir, "README.md", "initial\n", "initial commit")
	return repo
}

// commitTestFile writes a file and commits it, returning the hash.
func commitTestFile(t *testing.T, repo *git.Repository, dir, name, content, msg string) plumbing.Hash {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing %s failed: %v", name, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree failed: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("Add(%s) failed: %v", name, err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "relman-test", Email: "test@driftline.io", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return hash
}

// tagTestRepo creates a lightweight tag at the given commit.
func tagTestRepo(t *testing.T, repo *git.Repository, name string, hash plumbing.Hash) {
	t.Helper()
	if _, err := repo.CreateTag(name, hash, nil); err != nil {
		t.Fatalf("CreateTag(%s) failed: %v", name, err)
	}
}

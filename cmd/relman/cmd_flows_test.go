// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/relman/cmd/relman/config"
	"github.com/driftline/relman/cmd/relman/internal/proc"
	"github.com/driftline/relman/cmd/relman/internal/release"
	"github.com/driftline/relman/cmd/relman/internal/source"
	"github.com/driftline/relman/cmd/relman/internal/store"
	"github.com/driftline/relman/cmd/relman/internal/util"
	"github.com/driftline/relman/pkg/logging"
)

// newFlowStack wires a ReleaseStack against a temp store root with a
// permissive process mock, for exercising the rollback and cleanup
// flows end to end without builds or a real service.
func newFlowStack(t *testing.T, prompt util.UserPrompter) (*ReleaseStack, string) {
	t.Helper()
	root := t.TempDir()
	logger := logging.New(logging.Config{Quiet: true})
	mgr := &proc.MockManager{
		RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("driftd 1.0.0\n"), nil
		},
		RunInFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
			return []byte("driftd 1.0.0\n"), nil
		},
	}

	st := store.New(root, "active_release", mgr, logger)
	stack := &ReleaseStack{
		Config: config.Config{Service: config.ServiceConfig{BinaryName: "driftd"}},
		Log:    logger,
		Proc:   mgr,
		Prompt: prompt,
		Store:  st,
		Swapper: release.NewSwapper(st.PointerPath(), "driftd",
			mgr, logger),
		Restart: release.NewRestartCoordinator(st.PointerPath(), "driftd",
			90*time.Second, 10*time.Minute, mgr, logger),
		Locker: proc.NewOperationLock(proc.LockConfig{LockDir: t.TempDir()}),
	}
	return stack, root
}

func storeVersion(t *testing.T, root, key string) string {
	t.Helper()
	dir := filepath.Join(root, key)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "driftd"), []byte("#!/bin/sh\n"), 0o755))
	return dir
}

func activate(t *testing.T, root, key string) {
	t.Helper()
	require.NoError(t, os.Symlink(filepath.Join(root, key), filepath.Join(root, "active_release")))
}

func pointerTarget(t *testing.T, root string) string {
	t.Helper()
	target, err := os.Readlink(filepath.Join(root, "active_release"))
	require.NoError(t, err)
	return target
}

func TestRollbackSwapsToChosenVersion(t *testing.T) {
	prompt := &util.MockPrompter{SelectAnswers: []int{0}}
	stack, root := newFlowStack(t, prompt)
	old := storeVersion(t, root, "v1.0.0")
	storeVersion(t, root, "v2.0.0")
	activate(t, root, "v2.0.0")

	require.NoError(t, rollback(context.Background(), stack))

	// v2.0.0 is active and must not have been offered; the only
	// candidate was v1.0.0.
	assert.Equal(t, old, pointerTarget(t, root))

	// The old pointer became a backup.
	matches, err := filepath.Glob(filepath.Join(root, "active_release_*_before_rollback"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRollbackWithNoCandidatesIsNoOp(t *testing.T) {
	prompt := &util.MockPrompter{}
	stack, root := newFlowStack(t, prompt)
	storeVersion(t, root, "v1.0.0")
	activate(t, root, "v1.0.0")

	require.NoError(t, rollback(context.Background(), stack))
	assert.Empty(t, prompt.Prompts, "nothing to choose from")
	assert.Equal(t, filepath.Join(root, "v1.0.0"), pointerTarget(t, root))
}

func TestRollbackCancelledSelectionAborts(t *testing.T) {
	prompt := &util.MockPrompter{SelectErr: util.ErrCancelled}
	stack, root := newFlowStack(t, prompt)
	storeVersion(t, root, "v1.0.0")
	storeVersion(t, root, "v2.0.0")
	activate(t, root, "v2.0.0")

	err := rollback(context.Background(), stack)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrCancelled))
	assert.Equal(t, filepath.Join(root, "v2.0.0"), pointerTarget(t, root))
}

func TestCleanDeletesConfirmedSelection(t *testing.T) {
	prompt := &util.MockPrompter{
		MultiAnswers: [][]int{{0, 1}},
		TokenAnswers: []bool{true},
	}
	stack, root := newFlowStack(t, prompt)
	storeVersion(t, root, "v1.0.0")
	storeVersion(t, root, "v1.1.0")
	storeVersion(t, root, "v2.0.0")
	activate(t, root, "v2.0.0")

	require.NoError(t, clean(context.Background(), stack))

	// Candidates were [v1.1.0 v1.0.0] (version-sorted, active
	// excluded); both were selected and deleted.
	for _, gone := range []string{"v1.0.0", "v1.1.0"} {
		_, err := os.Lstat(filepath.Join(root, gone))
		assert.True(t, os.IsNotExist(err), gone)
	}
	_, err := os.Lstat(filepath.Join(root, "v2.0.0"))
	assert.NoError(t, err, "active version must survive")
}

func TestCleanNotConfirmedDeletesNothing(t *testing.T) {
	prompt := &util.MockPrompter{
		MultiAnswers: [][]int{{0}},
		TokenAnswers: []bool{false},
	}
	stack, root := newFlowStack(t, prompt)
	storeVersion(t, root, "v1.0.0")
	storeVersion(t, root, "v2.0.0")
	activate(t, root, "v2.0.0")

	require.NoError(t, clean(context.Background(), stack))
	_, err := os.Lstat(filepath.Join(root, "v1.0.0"))
	assert.NoError(t, err)
}

func TestCleanEmptySelectionIsNoOp(t *testing.T) {
	prompt := &util.MockPrompter{MultiAnswers: [][]int{{}}}
	stack, root := newFlowStack(t, prompt)
	storeVersion(t, root, "v1.0.0")
	storeVersion(t, root, "v2.0.0")
	activate(t, root, "v2.0.0")

	require.NoError(t, clean(context.Background(), stack))
	_, err := os.Lstat(filepath.Join(root, "v1.0.0"))
	assert.NoError(t, err)
}

func TestCleanCancelledSelectionAborts(t *testing.T) {
	prompt := &util.MockPrompter{MultiErr: util.ErrCancelled}
	stack, root := newFlowStack(t, prompt)
	storeVersion(t, root, "v1.0.0")
	storeVersion(t, root, "v2.0.0")
	activate(t, root, "v2.0.0")

	err := clean(context.Background(), stack)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrCancelled))
}

func TestUpgradeDeclinedConfirmationAbortsBeforeAnyWork(t *testing.T) {
	prompt := &util.MockPrompter{ConfirmAnswers: []bool{false}}
	stack, _ := newFlowStack(t, prompt)
	stack.Variants = source.VariantsFromConfig([]config.VariantConfig{
		{Name: "performance-fork", RepoURL: "u", Workdir: "w", MatchSuffix: "-perf"},
		{Name: "upstream", RepoURL: "u", Workdir: "w", Confirm: true},
	})

	err := upgrade(context.Background(), stack, "v9.9.9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrCancelled))
	require.Len(t, prompt.Prompts, 1)
	assert.Contains(t, prompt.Prompts[0], "upstream")
	assert.Empty(t, stack.Proc.(*proc.MockManager).Calls(), "no process may run before confirmation")
}

func TestMutatingFlowsShareTheOperationLock(t *testing.T) {
	prompt := &util.MockPrompter{}
	stack, root := newFlowStack(t, prompt)
	storeVersion(t, root, "v1.0.0")
	activate(t, root, "v1.0.0")

	// A competing holder blocks the flow before any prompt or swap.
	require.NoError(t, stack.Locker.Acquire())
	defer func() { _ = stack.Locker.Release() }()

	other := &ReleaseStack{
		Config:  stack.Config,
		Log:     stack.Log,
		Proc:    stack.Proc,
		Prompt:  prompt,
		Store:   stack.Store,
		Swapper: stack.Swapper,
		Restart: stack.Restart,
		Locker: proc.NewOperationLock(proc.LockConfig{
			LockDir: filepath.Dir(stack.Locker.(*proc.OperationLock).LockPath()),
		}),
	}

	err := clean(context.Background(), other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in progress")
	assert.Empty(t, prompt.Prompts)
}

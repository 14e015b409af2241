// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/relman/cmd/relman/internal/store"
	"github.com/driftline/relman/pkg/ux"
)

func runRollback(cmd *cobra.Command, args []string) {
	stack, err := DefaultStackFactory{
		NonInteractive: nonInteractive,
		AssumeYes:      assumeYes,
		PlainPrompts:   plainPrompts,
	}.CreateReleaseStack(cfg, log)
	if err != nil {
		fatal(err)
	}
	if err := rollback(cmd.Context(), stack); err != nil {
		fatal(err)
	}
}

// rollback swaps the active release pointer back to a stored version
// chosen interactively. No build is involved; the chosen entry's
// binary is re-verified by the swap protocol.
func rollback(ctx context.Context, stack *ReleaseStack) error {
	if err := stack.Locker.Acquire(); err != nil {
		return err
	}
	defer func() { _ = stack.Locker.Release() }()

	candidates, activeKey, err := selectableEntries(stack)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		ux.Infof("no stored versions to roll back to")
		return nil
	}
	if activeKey != "" {
		ux.Infof("active release: %s", ux.Highlight(activeKey))
	}

	options := make([]string, len(candidates))
	for i, e := range candidates {
		options[i] = e.Key
	}
	idx, err := stack.Prompt.Select(ctx, "Roll back to which version?", options)
	if err != nil {
		return err
	}
	target := candidates[idx]

	rep, err := stack.Swapper.Swap(ctx, target.Path, "rollback")
	reportWarnings(rep.Warnings)
	if err != nil {
		return err
	}

	if err := stack.Restart.SignalExit(ctx); err != nil {
		ux.Warnf("%v", err)
	}

	ux.Successf("active release is now %s", ux.Highlight(target.Key))
	return nil
}

// selectableEntries lists stored versions excluding the active one,
// which is never a valid rollback or cleanup target.
func selectableEntries(stack *ReleaseStack) ([]store.Entry, string, error) {
	entries, err := stack.Store.Entries()
	if err != nil {
		return nil, "", fmt.Errorf("failed to enumerate stored versions: %w", err)
	}
	activeKey, hasPointer, err := stack.Store.ActiveKey()
	if err != nil {
		return nil, "", err
	}
	if !hasPointer {
		return entries, "", nil
	}

	candidates := entries[:0:0]
	for _, e := range entries {
		if e.Key != activeKey {
			candidates = append(candidates, e)
		}
	}
	return candidates, activeKey, nil
}

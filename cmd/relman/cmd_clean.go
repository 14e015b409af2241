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

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/driftline/relman/pkg/ux"
)

func runClean(cmd *cobra.Command, args []string) {
	stack, err := DefaultStackFactory{
		NonInteractive: nonInteractive,
		AssumeYes:      assumeYes,
		PlainPrompts:   plainPrompts,
	}.CreateReleaseStack(cfg, log)
	if err != nil {
		fatal(err)
	}
	if err := clean(cmd.Context(), stack); err != nil {
		fatal(err)
	}
}

// clean deletes stored versions chosen interactively. Deletion is
// irreversible, so a typed "yes" is required after the reclaimable
// space is shown. The active version and pointer backups are never
// offered.
func clean(ctx context.Context, stack *ReleaseStack) error {
	if err := stack.Locker.Acquire(); err != nil {
		return err
	}
	defer func() { _ = stack.Locker.Release() }()

	candidates, activeKey, err := selectableEntries(stack)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		ux.Infof("no stored versions are deletable")
		return nil
	}
	if activeKey != "" {
		ux.Infof("active release %s is not shown; it cannot be deleted", ux.Highlight(activeKey))
	}

	options := make([]string, len(candidates))
	for i, e := range candidates {
		options[i] = e.Key
	}
	picked, err := stack.Prompt.MultiSelect(ctx, "Delete which versions?", options)
	if err != nil {
		return err
	}
	if len(picked) == 0 {
		ux.Infof("nothing selected, nothing deleted")
		return nil
	}

	var total uint64
	for _, idx := range picked {
		e := candidates[idx]
		size, err := stack.Store.Usage(e)
		if err != nil {
			return err
		}
		total += uint64(size)
		ux.Infof("%s  %s", humanize.IBytes(uint64(size)), e.Key)
	}
	ux.Titlef("Reclaimable: %s across %d version(s)", humanize.IBytes(total), len(picked))

	ok, err := stack.Prompt.ConfirmToken(ctx,
		"This deletes the selected versions permanently. Type 'yes' to proceed", "yes")
	if err != nil {
		return err
	}
	if !ok {
		ux.Infof("not confirmed, nothing deleted")
		return nil
	}

	failed := 0
	for _, idx := range picked {
		e := candidates[idx]
		if err := stack.Store.Remove(e); err != nil {
			failed++
			ux.Errorf("delete %s: %v", e.Key, err)
			continue
		}
		ux.Successf("deleted %s", e.Key)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deletions failed", failed, len(picked))
	}
	return nil
}

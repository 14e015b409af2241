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

	"github.com/driftline/relman/cmd/relman/internal/build"
	"github.com/driftline/relman/cmd/relman/internal/source"
	"github.com/driftline/relman/cmd/relman/internal/store"
	"github.com/driftline/relman/cmd/relman/internal/util"
	"github.com/driftline/relman/pkg/ux"
)

// runRoot dispatches the root command: the read-only ref listings, or
// an upgrade of the given revision.
func runRoot(cmd *cobra.Command, args []string) {
	stack, err := DefaultStackFactory{
		NonInteractive: nonInteractive,
		AssumeYes:      assumeYes,
		PlainPrompts:   plainPrompts,
	}.CreateReleaseStack(cfg, log)
	if err != nil {
		fatal(err)
	}

	switch {
	case listTags != "":
		if err := listRefs(cmd.Context(), stack, listTags, source.RefTags); err != nil {
			fatal(err)
		}
	case listBranches != "":
		if err := listRefs(cmd.Context(), stack, listBranches, source.RefBranches); err != nil {
			fatal(err)
		}
	case len(args) == 1:
		if err := upgrade(cmd.Context(), stack, args[0]); err != nil {
			fatal(err)
		}
	default:
		_ = cmd.Help()
	}
}

// upgrade builds revision and, on success, swaps the active release
// pointer to the new version and signals the service to restart.
func upgrade(ctx context.Context, stack *ReleaseStack, revision string) error {
	if err := stack.Locker.Acquire(); err != nil {
		return err
	}
	defer func() { _ = stack.Locker.Release() }()

	cls, err := source.Classify(revision, stack.Variants)
	if err != nil {
		return err
	}
	ux.Infof("revision %s classified as variant %s", ux.Highlight(revision), cls.Variant.Name)

	if cls.NeedsConfirm {
		ok, err := stack.Prompt.Confirm(ctx,
			fmt.Sprintf("Build %q from variant %q?", revision, cls.Variant.Name))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("variant %s not confirmed for %s: %w",
				cls.Variant.Name, revision, util.ErrCancelled)
		}
	}

	if err := stack.Resolver.Ensure(ctx, cls.Variant); err != nil {
		return err
	}

	wd, err := source.OpenWorkdir(cls.Variant.Workdir)
	if err != nil {
		return err
	}

	jobs := stack.Config.Build.Jobs
	if jobsFlag > 0 {
		jobs = jobsFlag
	}

	ux.Titlef("Building %s (%s, -j%d)", revision, cls.Variant.Name, jobs)
	res, err := stack.Builder.Build(ctx, wd, revision, jobs)
	if err != nil {
		return err
	}
	reportWarnings(res.Warnings)
	if res.Outcome == build.OutcomeDegraded {
		ux.Warnf("build finished degraded: %s", res.Reason)
	}

	if err := stack.Store.EnsureRoot(ctx, stack.Resolver); err != nil {
		return err
	}

	key := store.VersionKey(revision)
	entry, err := stack.Store.Materialize(ctx, key, res.ArtifactDir)
	if err != nil {
		return err
	}

	rep, err := stack.Swapper.Swap(ctx, entry.Path, "upgrade")
	reportWarnings(rep.Warnings)
	if err != nil {
		return err
	}

	if err := stack.Restart.SignalExit(ctx); err != nil {
		ux.Warnf("%v", err)
	}

	ux.Successf("active release is now %s (commit %s, build %s)",
		ux.Highlight(key), shortHash(res.Commit), res.Outcome)
	return nil
}

func reportWarnings(warnings []string) {
	for _, w := range warnings {
		ux.Warnf("%s", w)
	}
}

func shortHash(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

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

	"github.com/driftline/relman/cmd/relman/internal/source"
	"github.com/driftline/relman/pkg/ux"
)

// listRefs prints the newest tags or branches of a named variant.
// Read-only: it fetches but never mutates the store or the pointer,
// so it runs without the operation lock.
func listRefs(ctx context.Context, stack *ReleaseStack, variantName string, kind source.RefKind) error {
	v, err := source.FindVariant(variantName, stack.Variants)
	if err != nil {
		return err
	}

	if err := stack.Resolver.Ensure(ctx, v); err != nil {
		return err
	}

	refs, err := stack.Resolver.ListRefs(ctx, v, kind, source.DefaultRefLimit)
	if err != nil {
		return err
	}

	what := "tags"
	if kind == source.RefBranches {
		what = "branches"
	}
	ux.Titlef("Newest %s of %s", what, v.Name)
	if len(refs) == 0 {
		ux.Mutedf("none found")
		return nil
	}
	for _, ref := range refs {
		fmt.Fprintln(ux.Out, ref)
	}
	return nil
}

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
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/mod/semver"
)

// RefKind selects which references ListRefs enumerates.
type RefKind int

const (
	// RefTags lists tag references.
	RefTags RefKind = iota

	// RefBranches lists remote branch references.
	RefBranches
)

// DefaultRefLimit bounds how many refs the list commands print.
const DefaultRefLimit = 20

// ListRefs fetches the variant's remote and returns up to limit ref
// names, newest first. Read-only apart from the fetch itself.
//
// Ordering: names that parse as semantic versions sort descending by
// version; everything else follows in reverse lexical order.
func (r *Resolver) ListRefs(ctx context.Context, v Variant, kind RefKind, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultRefLimit
	}

	wd, err := OpenWorkdir(v.Workdir)
	if err != nil {
		return nil, fmt.Errorf("working copy for %s not available (run an upgrade once to clone it): %w", v.Name, err)
	}

	err = wd.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) && !errors.Is(err, git.ErrRemoteNotFound) {
		return nil, fmt.Errorf("failed to fetch refs for %s: %w", v.Name, err)
	}

	refs, err := wd.repo.References()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate refs: %w", err)
	}

	var names []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		switch kind {
		case RefTags:
			if ref.Name().IsTag() {
				names = append(names, ref.Name().Short())
			}
		case RefBranches:
			if ref.Name().IsRemote() {
				short := strings.TrimPrefix(ref.Name().Short(), git.DefaultRemoteName+"/")
				if short != "HEAD" {
					names = append(names, short)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate refs: %w", err)
	}

	SortVersions(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

// SortVersions orders names newest-first: valid semantic versions
// descending, then the rest in reverse lexical order.
func SortVersions(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		vi, vj := semverKey(names[i]), semverKey(names[j])
		iValid, jValid := semver.IsValid(vi), semver.IsValid(vj)
		switch {
		case iValid && jValid:
			if c := semver.Compare(vi, vj); c != 0 {
				return c > 0
			}
			return names[i] > names[j]
		case iValid:
			return true
		case jValid:
			return false
		default:
			return names[i] > names[j]
		}
	})
}

// semverKey normalizes a ref or version-store key for semver
// comparison ("1.2.0" and "v1.2.0" both compare as v1.2.0).
func semverKey(name string) string {
	if strings.HasPrefix(name, "v") {
		return name
	}
	return "v" + name
}

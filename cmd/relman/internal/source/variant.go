// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package source resolves operator-supplied revisions to source
variants and keeps their local working copies usable.

A revision string (tag or branch name) classifies into exactly one
variant via an ordered, data-driven rule table: suffix rules first,
then prefix rules, then the single default variant. Classification is
a pure function; all filesystem and network side effects live in
Resolver.
*/
package source

import (
	"fmt"
	"strings"

	"github.com/driftline/relman/cmd/relman/config"
)

// Variant is one upstream source repository with its local working copy.
type Variant struct {
	// Name identifies the variant in prompts and logs.
	Name string

	// RepoURL is the repository locator used for clone and fetch.
	RepoURL string

	// Workdir is the local working copy path, shared across runs.
	Workdir string

	// MatchSuffix and MatchPrefix are the classification tokens.
	MatchSuffix string
	MatchPrefix string

	// Confirm requires interactive confirmation before building.
	Confirm bool
}

// VariantsFromConfig converts the config table, preserving order.
func VariantsFromConfig(rows []config.VariantConfig) []Variant {
	variants := make([]Variant, len(rows))
	for i, row := range rows {
		variants[i] = Variant{
			Name:        row.Name,
			RepoURL:     row.RepoURL,
			Workdir:     row.Workdir,
			MatchSuffix: row.MatchSuffix,
			MatchPrefix: row.MatchPrefix,
			Confirm:     row.Confirm,
		}
	}
	return variants
}

// Classification is the result of classifying a revision.
type Classification struct {
	Variant Variant

	// NeedsConfirm is true when the variant's intent is ambiguous
	// enough to require interactive confirmation before building.
	NeedsConfirm bool
}

// Classify maps a revision to exactly one variant.
//
// Rules are checked in order: all suffix rules in table order, then
// all prefix rules in table order, then the default (matcher-less)
// variant. The function is deterministic and total for any table
// that passes config validation (which guarantees one default row).
func Classify(revision string, variants []Variant) (Classification, error) {
	if strings.TrimSpace(revision) == "" {
		return Classification{}, fmt.Errorf("empty revision")
	}

	for _, v := range variants {
		if v.MatchSuffix != "" && strings.HasSuffix(revision, v.MatchSuffix) {
			return Classification{Variant: v, NeedsConfirm: v.Confirm}, nil
		}
	}
	for _, v := range variants {
		if v.MatchPrefix != "" && strings.HasPrefix(revision, v.MatchPrefix) {
			return Classification{Variant: v, NeedsConfirm: v.Confirm}, nil
		}
	}
	for _, v := range variants {
		if v.MatchSuffix == "" && v.MatchPrefix == "" {
			return Classification{Variant: v, NeedsConfirm: v.Confirm}, nil
		}
	}
	return Classification{}, fmt.Errorf("no variant matches revision %q and no default variant is configured", revision)
}

// FindVariant returns the variant with the given name, for the
// read-only ref listing commands.
func FindVariant(name string, variants []Variant) (Variant, error) {
	for _, v := range variants {
		if v.Name == name {
			return v, nil
		}
	}
	known := make([]string, len(variants))
	for i, v := range variants {
		known[i] = v.Name
	}
	return Variant{}, fmt.Errorf("unknown variant %q (known: %s)", name, strings.Join(known, ", "))
}

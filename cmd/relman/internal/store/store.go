// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package store implements the version store: a directory tree under a
configured root, keyed by sanitized revision name, holding the
artifacts of successful builds.

Layout:

	<root>/<VersionKey>/<artifacts...>
	<root>/active_release                      -> symlink into an entry
	<root>/active_release_<ts>_before_<op>    pointer backups (audit trail)

Entries are written once by Materialize and deleted only by the
cleanup flow; the pointer itself is owned by package release.
*/
package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftline/relman/cmd/relman/internal/proc"
	"github.com/driftline/relman/cmd/relman/internal/source"
	"github.com/driftline/relman/pkg/logging"
)

// VersionKey sanitizes a revision into a filesystem-safe store key.
// Path separators are the only characters git allows in ref names
// that the store cannot, so the transformation stays injective for
// the tag/branch domain.
func VersionKey(revision string) string {
	key := strings.ReplaceAll(revision, "/", "_")
	return strings.ReplaceAll(key, string(os.PathSeparator), "_")
}

// Entry is one stored version.
type Entry struct {
	// Key is the sanitized revision name (the directory name).
	Key string

	// Path is the absolute artifact directory.
	Path string
}

// Store manages version entries under a root directory.
type Store struct {
	root        string
	pointerName string
	proc        proc.Manager
	log         *logging.Logger
}

// New creates a Store. The root is not touched until EnsureRoot.
func New(root, pointerName string, procMgr proc.Manager, logger *logging.Logger) *Store {
	return &Store{root: root, pointerName: pointerName, proc: procMgr, log: logger}
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// PointerPath returns the active release pointer path under the root.
func (s *Store) PointerPath() string {
	return filepath.Join(s.root, s.pointerName)
}

// PointerName returns the configured pointer name.
func (s *Store) PointerName() string {
	return s.pointerName
}

// EnsureRoot creates and ownership-normalizes the store root on
// first use, with the same elevated protocol as working copies.
func (s *Store) EnsureRoot(ctx context.Context, resolver *source.Resolver) error {
	if err := resolver.PrepareStoreRoot(ctx, s.root); err != nil {
		return fmt.Errorf("failed to prepare version store root %s: %w", s.root, err)
	}
	return nil
}

// Materialize synchronizes srcDir into <root>/<key>, preserving
// contents, permissions, and special attributes byte-for-byte.
// Any synchronization error is fatal for the operation.
func (s *Store) Materialize(ctx context.Context, key, srcDir string) (Entry, error) {
	if key == "" {
		return Entry{}, fmt.Errorf("empty version key")
	}
	dest := filepath.Join(s.root, key)

	// Trailing slash on the source: sync directory contents, not the
	// directory itself.
	if _, err := s.proc.Run(ctx, "rsync", "-a", srcDir+string(os.PathSeparator), dest+string(os.PathSeparator)); err != nil {
		return Entry{}, fmt.Errorf("failed to synchronize artifacts into version store: %w", err)
	}

	s.log.Info("version entry materialized", "key", key, "path", dest)
	return Entry{Key: key, Path: dest}, nil
}

// Entries lists stored versions, newest version first. The active
// release pointer, its backups, and anything that is not a plain
// directory are excluded.
func (s *Store) Entries() ([]Entry, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read version store root %s: %w", s.root, err)
	}

	var keys []string
	for _, d := range dirents {
		name := d.Name()
		if name == s.pointerName || strings.HasPrefix(name, s.pointerName+"_") {
			continue
		}
		// The pointer is a symlink; entries are plain directories.
		info, err := os.Lstat(filepath.Join(s.root, name))
		if err != nil || !info.IsDir() {
			continue
		}
		keys = append(keys, name)
	}

	source.SortVersions(keys)

	entries := make([]Entry, len(keys))
	for i, key := range keys {
		entries[i] = Entry{Key: key, Path: filepath.Join(s.root, key)}
	}
	return entries, nil
}

// ActiveKey reports the VersionKey the pointer currently resolves to,
// and whether a pointer exists at all.
func (s *Store) ActiveKey() (string, bool, error) {
	target, err := os.Readlink(s.PointerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read active release pointer: %w", err)
	}
	return filepath.Base(target), true, nil
}

// Usage returns the recursive disk usage of an entry in bytes.
func (s *Store) Usage(e Entry) (int64, error) {
	var total int64
	err := filepath.WalkDir(e.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", e.Key, err)
	}
	return total, nil
}

// Remove irreversibly deletes an entry's artifact directory. The
// caller is responsible for never passing the active entry; Remove
// re-checks anyway and refuses.
func (s *Store) Remove(e Entry) error {
	activeKey, hasPointer, err := s.ActiveKey()
	if err != nil {
		return err
	}
	if hasPointer && activeKey == e.Key {
		return fmt.Errorf("refusing to delete the active version %s", e.Key)
	}
	if err := os.RemoveAll(e.Path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", e.Key, err)
	}
	s.log.Info("version entry deleted", "key", e.Key)
	return nil
}

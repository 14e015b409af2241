// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"os/user"

	"github.com/driftline/relman/cmd/relman/config"
	"github.com/driftline/relman/cmd/relman/internal/build"
	"github.com/driftline/relman/cmd/relman/internal/proc"
	"github.com/driftline/relman/cmd/relman/internal/release"
	"github.com/driftline/relman/cmd/relman/internal/source"
	"github.com/driftline/relman/cmd/relman/internal/store"
	"github.com/driftline/relman/cmd/relman/internal/util"
	"github.com/driftline/relman/pkg/logging"
)

// =============================================================================
// INTERFACES
// =============================================================================

// StackFactory creates ReleaseStack instances with all required
// dependencies. Production code uses DefaultStackFactory; tests
// assemble a ReleaseStack by hand with mocks.
type StackFactory interface {
	// CreateReleaseStack wires every component a release operation
	// needs: process manager, prompter, resolver, orchestrator,
	// version store, pointer swapper, restart coordinator, and the
	// advisory operation lock.
	CreateReleaseStack(cfg config.Config, logger *logging.Logger) (*ReleaseStack, error)
}

// =============================================================================
// STRUCTS
// =============================================================================

// ReleaseStack bundles the wired components behind every command.
type ReleaseStack struct {
	Config   config.Config
	Log      *logging.Logger
	Proc     proc.Manager
	Prompt   util.UserPrompter
	Variants []source.Variant
	Resolver *source.Resolver
	Builder  *build.Orchestrator
	Store    *store.Store
	Swapper  *release.Swapper
	Restart  *release.RestartCoordinator
	Locker   proc.OperationLocker
}

// DefaultStackFactory is the production StackFactory.
type DefaultStackFactory struct {
	// NonInteractive selects the auto-answering prompter; every
	// confirmation resolves to AssumeYes and selections fail as
	// cancelled.
	NonInteractive bool

	// AssumeYes pre-approves yes/no confirmations.
	AssumeYes bool

	// PlainPrompts forces the line-based prompter even on a TTY.
	PlainPrompts bool
}

// =============================================================================
// METHODS
// =============================================================================

// CreateReleaseStack wires production dependencies in order:
//
//	Manager -> Prompter -> Resolver -> Orchestrator ->
//	Store -> Swapper -> RestartCoordinator -> OperationLock
func (f DefaultStackFactory) CreateReleaseStack(cfg config.Config, logger *logging.Logger) (*ReleaseStack, error) {
	procMgr := proc.NewDefaultManager()
	prompt := f.prompter()

	owner := cfg.Store.Owner
	if owner == "" {
		if u, err := user.Current(); err == nil {
			owner = u.Username
		}
	}

	st := store.New(cfg.Store.Root, cfg.Store.PointerName, procMgr, logger)

	lockCfg := proc.DefaultLockConfig()
	if cfg.Lock.Dir != "" {
		lockCfg.LockDir = cfg.Lock.Dir
	}

	return &ReleaseStack{
		Config:   cfg,
		Log:      logger,
		Proc:     procMgr,
		Prompt:   prompt,
		Variants: source.VariantsFromConfig(cfg.Variants),
		Resolver: source.NewResolver(procMgr, logger, owner),
		Builder:  build.NewOrchestrator(cfg.Build, cfg.Service.BinaryName, procMgr, prompt, logger),
		Store:    st,
		Swapper:  release.NewSwapper(st.PointerPath(), cfg.Service.BinaryName, procMgr, logger),
		Restart: release.NewRestartCoordinator(st.PointerPath(), cfg.Service.BinaryName,
			cfg.Service.MaxStale.Std(), cfg.Service.MaxIdle.Std(), procMgr, logger),
		Locker: proc.NewOperationLock(lockCfg),
	}, nil
}

func (f DefaultStackFactory) prompter() util.UserPrompter {
	switch {
	case f.NonInteractive:
		return &util.NonInteractivePrompter{Approve: f.AssumeYes}
	case f.PlainPrompts || !stdinIsTerminal():
		return util.NewInteractivePrompter()
	default:
		return util.NewHuhPrompter()
	}
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

var _ StackFactory = DefaultStackFactory{}

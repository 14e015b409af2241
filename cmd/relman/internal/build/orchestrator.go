// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package build turns a checked-out revision into build artifacts and
classifies the outcome.

Outcomes are explicit: Success means the preferred install procedure
ran to completion; DegradedSuccess means it failed but the critical
service binary was located anyway (auxiliary tooling may be missing);
Failure means no usable binary exists and nothing downstream may run.

Artifact directory selection honors one invariant: when the install
procedure did not run to completion, a configured custom toolchain
output root takes precedence over the collected-output directory, so
stale artifacts from an earlier build are never shipped.
*/
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/driftline/relman/cmd/relman/config"
	"github.com/driftline/relman/cmd/relman/internal/proc"
	"github.com/driftline/relman/cmd/relman/internal/util"
	"github.com/driftline/relman/pkg/logging"
	"github.com/driftline/relman/pkg/ux"
)

// Outcome classifies a finished build.
type Outcome int

const (
	// OutcomeFailure means no usable artifacts were produced.
	OutcomeFailure Outcome = iota

	// OutcomeSuccess means the install procedure ran to completion.
	OutcomeSuccess

	// OutcomeDegraded means the install procedure failed but the
	// critical binary was built; optional tooling may be missing.
	OutcomeDegraded
)

// String renders the outcome for logs and reports.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDegraded:
		return "degraded-success"
	default:
		return "failure"
	}
}

// Result describes a finished build.
type Result struct {
	// Outcome is the build classification.
	Outcome Outcome

	// Reason explains a degraded or failed outcome.
	Reason string

	// Commit is the resolved commit hash the artifacts were built from.
	Commit string

	// ArtifactDir is the absolute directory to materialize into the
	// version store. Empty on failure.
	ArtifactDir string

	// Warnings are non-fatal findings surfaced to the operator.
	Warnings []string
}

// GitWorkdir is the working-copy surface the orchestrator drives.
// *source.Workdir satisfies it; tests substitute a scripted fake.
type GitWorkdir interface {
	// Path returns the working copy root.
	Path() string

	// CheckoutForce destructively checks out a revision and reports
	// the resolved commit and whether the reference is movable.
	CheckoutForce(ctx context.Context, revision string) (commit string, movable bool, err error)

	// PullBranch fast-forwards the currently checked-out branch.
	PullBranch(ctx context.Context) error

	// SyncSubmodules recursively updates sub-dependencies.
	SyncSubmodules(ctx context.Context) error
}

// Orchestrator runs the build pipeline for one revision.
type Orchestrator struct {
	cfg     config.BuildConfig
	binary  string
	proc    proc.Manager
	prompt  util.UserPrompter
	log     *logging.Logger
	buildEn io.Writer
}

// NewOrchestrator wires an Orchestrator. Build output streams to
// ux.Out so the operator watches the toolchain live.
func NewOrchestrator(cfg config.BuildConfig, binaryName string, procMgr proc.Manager, prompt util.UserPrompter, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		binary:  binaryName,
		proc:    procMgr,
		prompt:  prompt,
		log:     logger,
		buildEn: ux.Out,
	}
}

// Build checks out revision in wd, refreshes sub-dependencies, runs
// the install procedure (or the confirmed direct-compiler fallback)
// with the given parallelism, and classifies the outcome.
//
// The returned error is non-nil exactly when Result.Outcome is
// OutcomeFailure; degraded builds return a nil error and carry their
// explanation in Result.Reason and Result.Warnings.
func (o *Orchestrator) Build(ctx context.Context, wd GitWorkdir, revision string, jobs int) (Result, error) {
	res := Result{}

	commit, movable, err := wd.CheckoutForce(ctx, revision)
	if err != nil {
		return o.fail(res, fmt.Sprintf("checkout of %s failed", revision)), err
	}
	res.Commit = commit
	o.log.Info("revision checked out", "revision", revision, "commit", commit, "movable", movable)

	// A movable branch gets refreshed; a stale upstream is a warning,
	// the build proceeds against whatever is checked out.
	if movable {
		if err := wd.PullBranch(ctx); err != nil {
			warn := fmt.Sprintf("could not fast-forward %s, building the currently checked-out commit: %v", revision, err)
			res.Warnings = append(res.Warnings, warn)
			o.log.Warn("branch refresh failed", "revision", revision, "error", err)
		}
	}

	if err := wd.SyncSubmodules(ctx); err != nil {
		return o.fail(res, "sub-dependency synchronization failed"), fmt.Errorf("failed to synchronize sub-dependencies: %w", err)
	}

	env := []string{
		"RELMAN_COMMIT=" + commit,
		"RELMAN_JOBS=" + strconv.Itoa(jobs),
	}

	scriptRan, toolErr, err := o.runToolchain(ctx, wd, env, jobs)
	if err != nil {
		return o.fail(res, "build procedure failed"), err
	}

	if scriptRan && toolErr == nil {
		res.Outcome = OutcomeSuccess
		res.ArtifactDir = filepath.Join(wd.Path(), o.cfg.CollectedDir)
		if !o.binaryAt(res.ArtifactDir) {
			return o.fail(res, fmt.Sprintf("%s missing from %s after a clean build", o.binary, o.cfg.CollectedDir)),
				fmt.Errorf("install procedure succeeded but %s is not in %s", o.binary, res.ArtifactDir)
		}
		return res, nil
	}

	// The preferred procedure failed (or never ran): locate the
	// critical binary in the well-known output locations before
	// giving up.
	foundDir, ok := o.probe(wd.Path())
	if !ok {
		reason := fmt.Sprintf("%s was not produced in any known output location", o.binary)
		return o.fail(res, reason), fmt.Errorf("build failed: %s", reason)
	}

	res.ArtifactDir = o.pickDegradedDir(wd.Path(), foundDir)
	if toolErr != nil {
		res.Outcome = OutcomeDegraded
		res.Reason = fmt.Sprintf("build procedure failed but %s was built (%v); auxiliary tooling may be missing", o.binary, toolErr)
		res.Warnings = append(res.Warnings, res.Reason)
		o.log.Warn("degraded build", "reason", res.Reason, "artifact_dir", res.ArtifactDir)
	} else {
		// Direct-compiler fallback completed; no collection step ran.
		res.Outcome = OutcomeSuccess
		res.Warnings = append(res.Warnings,
			"built via direct compiler invocation; build metadata may not be embedded")
	}
	return res, nil
}

// runToolchain invokes the install procedure when present, otherwise
// the confirmed direct-compiler fallback. scriptRan reports which
// path executed, toolErr carries the procedure's own failure (the
// caller applies degraded-success handling to it), and err is fatal.
func (o *Orchestrator) runToolchain(ctx context.Context, wd GitWorkdir, env []string, jobs int) (scriptRan bool, toolErr error, err error) {
	script := filepath.Join(wd.Path(), o.cfg.InstallScript)
	if isExecutable(script) {
		o.log.Info("running install procedure", "script", o.cfg.InstallScript, "jobs", jobs)
		toolErr = o.proc.RunStreaming(ctx, wd.Path(), env, o.buildEn, script, "-j", strconv.Itoa(jobs))
		return true, toolErr, nil
	}

	// No install procedure in this tree. The direct invocation skips
	// metadata embedding and binary collection, so the operator has
	// to opt in.
	ok, perr := o.prompt.Confirm(ctx,
		fmt.Sprintf("%s is missing; build with 'make -j%d' directly (no build metadata)?", o.cfg.InstallScript, jobs))
	if perr != nil {
		return false, nil, perr
	}
	if !ok {
		return false, nil, fmt.Errorf("direct compiler fallback declined: %w", util.ErrCancelled)
	}

	o.log.Info("running direct compiler fallback", "jobs", jobs)
	toolErr = o.proc.RunStreaming(ctx, wd.Path(), env, o.buildEn, "make", "-j"+strconv.Itoa(jobs))
	return false, toolErr, nil
}

// probe searches the configured well-known output locations for the
// critical binary, in order, and returns the first hit.
func (o *Orchestrator) probe(workdir string) (string, bool) {
	for _, dir := range o.cfg.ProbeDirs {
		candidate := filepath.Join(workdir, dir)
		if o.binaryAt(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// pickDegradedDir selects the artifact directory when the install
// procedure did not run to completion. A configured custom output
// root wins over wherever the probe found the binary: the collected
// directory may hold stale artifacts from an earlier build.
func (o *Orchestrator) pickDegradedDir(workdir, foundDir string) string {
	if o.cfg.CustomOutputRoot != "" {
		custom := filepath.Join(workdir, o.cfg.CustomOutputRoot)
		if o.binaryAt(custom) {
			return custom
		}
	}
	return foundDir
}

func (o *Orchestrator) binaryAt(dir string) bool {
	return isExecutable(filepath.Join(dir, o.binary))
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

func (o *Orchestrator) fail(res Result, reason string) Result {
	res.Outcome = OutcomeFailure
	res.Reason = reason
	res.ArtifactDir = ""
	return res
}

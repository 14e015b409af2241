// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package util provides shared primitives for the relman CLI:
the UserPrompter port for interactive input and CommandError for
external command failures.

All confirmation and selection prompts in relman go through the
UserPrompter interface so core flows stay testable without a
terminal. Production code uses HuhPrompter (or InteractivePrompter
on dumb terminals); automated runs use NonInteractivePrompter.
*/
package util

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UserPrompter handles interactive operator input.
//
// # Description
//
// Abstracts every blocking prompt in relman: yes/no confirmations,
// typed-token confirmations before destructive actions, and numbered
// single/multi selections. Core logic never touches a terminal
// directly.
//
// # Context Handling
//
// All methods accept a context and return its error if it is already
// cancelled. Prompts themselves block on operator input.
type UserPrompter interface {
	// Confirm asks a yes/no question. The default answer is no.
	Confirm(ctx context.Context, prompt string) (bool, error)

	// ConfirmToken asks the operator to type an exact token
	// (e.g. "yes") before a destructive action. Anything else is a
	// decline, not an error.
	ConfirmToken(ctx context.Context, prompt, token string) (bool, error)

	// Select presents a numbered choice and returns the chosen index.
	// Returns ErrCancelled if the operator cancels.
	Select(ctx context.Context, prompt string, options []string) (int, error)

	// MultiSelect presents a numbered choice allowing multiple
	// selections and returns the chosen indices in ascending order.
	// An empty selection is valid and returns an empty slice.
	MultiSelect(ctx context.Context, prompt string, options []string) ([]int, error)
}

// =============================================================================
// InteractivePrompter (plain IO)
// =============================================================================

// InteractivePrompter reads answers from an io.Reader, one line per
// prompt. It is the fallback for non-TTY sessions and the basis for
// unit tests (inject a strings.Reader).
type InteractivePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewInteractivePrompter returns a prompter on stdin/stdout.
func NewInteractivePrompter() *InteractivePrompter {
	return NewInteractivePrompterWithIO(os.Stdin, os.Stdout)
}

// NewInteractivePrompterWithIO returns a prompter on the given streams.
func NewInteractivePrompterWithIO(in io.Reader, out io.Writer) *InteractivePrompter {
	return &InteractivePrompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a [y/N] question; empty or unrecognized input means no.
func (p *InteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ConfirmToken requires the exact token to be typed; case-sensitive.
func (p *InteractivePrompter) ConfirmToken(ctx context.Context, prompt, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s (type %q to proceed): ", prompt, token)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	return line == token, nil
}

// Select shows a numbered menu with a 0) cancel entry. Out-of-range
// or non-numeric input is rejected and the menu is re-prompted.
func (p *InteractivePrompter) Select(ctx context.Context, prompt string, options []string) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fmt.Fprintln(p.out, prompt)
		for i, opt := range options {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprintln(p.out, "  0) cancel")
		fmt.Fprint(p.out, "choice: ")

		line, err := p.readLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 || n > len(options) {
			fmt.Fprintf(p.out, "invalid choice %q\n", line)
			continue
		}
		if n == 0 {
			return 0, ErrCancelled
		}
		return n - 1, nil
	}
}

// MultiSelect accepts a comma/space separated list of numbers. An
// empty line selects nothing. Any invalid number re-prompts.
func (p *InteractivePrompter) MultiSelect(ctx context.Context, prompt string, options []string) ([]int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintln(p.out, prompt)
		for i, opt := range options {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprint(p.out, "choices (e.g. 1,3; empty for none): ")

		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return []int{}, nil
		}

		fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' })
		seen := make(map[int]bool, len(fields))
		valid := true
		for _, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil || n < 1 || n > len(options) {
				fmt.Fprintf(p.out, "invalid choice %q\n", f)
				valid = false
				break
			}
			seen[n-1] = true
		}
		if !valid {
			continue
		}
		indices := make([]int, 0, len(seen))
		for i := range options {
			if seen[i] {
				indices = append(indices, i)
			}
		}
		return indices, nil
	}
}

func (p *InteractivePrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// HuhPrompter (TTY forms)
// =============================================================================

// HuhPrompter renders prompts as huh forms. This is the production
// default when stdin is a terminal.
type HuhPrompter struct{}

// NewHuhPrompter returns a form-based prompter.
func NewHuhPrompter() *HuhPrompter {
	return &HuhPrompter{}
}

// Confirm renders a yes/no form defaulting to no.
func (p *HuhPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(prompt).Affirmative("Yes").Negative("No").Value(&confirmed),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}

// ConfirmToken renders a text input and compares against the token.
func (p *HuhPrompter) ConfirmToken(ctx context.Context, prompt, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var answer string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title(prompt).Placeholder(token).Value(&answer),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return strings.TrimSpace(answer) == token, nil
}

// Select renders a single-choice form with an explicit Cancel entry.
func (p *HuhPrompter) Select(ctx context.Context, prompt string, options []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	const cancel = -1
	choices := make([]huh.Option[int], 0, len(options)+1)
	for i, opt := range options {
		choices = append(choices, huh.NewOption(opt, i))
	}
	choices = append(choices, huh.NewOption("Cancel", cancel))

	selected := cancel
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().Title(prompt).Options(choices...).Value(&selected),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return 0, fmt.Errorf("selection prompt failed: %w", err)
	}
	if selected == cancel {
		return 0, ErrCancelled
	}
	return selected, nil
}

// MultiSelect renders a multi-choice form; no selection is valid.
func (p *HuhPrompter) MultiSelect(ctx context.Context, prompt string, options []string) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	choices := make([]huh.Option[int], 0, len(options))
	for i, opt := range options {
		choices = append(choices, huh.NewOption(opt, i))
	}

	var selected []int
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[int]().Title(prompt).Options(choices...).Value(&selected),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("selection prompt failed: %w", err)
	}
	indices := append([]int(nil), selected...)
	sort.Ints(indices)
	return indices, nil
}

// =============================================================================
// NonInteractivePrompter
// =============================================================================

// NonInteractivePrompter answers confirmations without a terminal.
// Approve=true corresponds to --yes, Approve=false to --non-interactive
// (auto-reject). Selections always fail: there is no safe way to pick
// a rollback or deletion target automatically.
type NonInteractivePrompter struct {
	Approve bool
}

// Confirm returns the configured answer.
func (p *NonInteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.Approve, nil
}

// ConfirmToken returns the configured answer.
func (p *NonInteractivePrompter) ConfirmToken(ctx context.Context, prompt, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.Approve, nil
}

// Select always cancels: index selection needs an operator.
func (p *NonInteractivePrompter) Select(ctx context.Context, prompt string, options []string) (int, error) {
	return 0, fmt.Errorf("selection %q requires an interactive terminal: %w", prompt, ErrCancelled)
}

// MultiSelect always cancels: index selection needs an operator.
func (p *NonInteractivePrompter) MultiSelect(ctx context.Context, prompt string, options []string) ([]int, error) {
	return nil, fmt.Errorf("selection %q requires an interactive terminal: %w", prompt, ErrCancelled)
}

// Compile-time interface satisfaction checks.
var (
	_ UserPrompter = (*InteractivePrompter)(nil)
	_ UserPrompter = (*HuhPrompter)(nil)
	_ UserPrompter = (*NonInteractivePrompter)(nil)
)

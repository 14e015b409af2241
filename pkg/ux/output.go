// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the relman CLI.
//
// Operator-facing status lines go through this package; structured
// logging goes through pkg/logging. The two are deliberately separate:
// ux output is the product surface, logging is the audit surface.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Driftline palette - cold greens and harbor greys.
var (
	ColorSuccess = lipgloss.Color("#36C98E") // sea green - success
	ColorWarning = lipgloss.Color("#F4D03F") // amber - warnings
	ColorError   = lipgloss.Color("#E74C3C") // red - errors
	ColorAccent  = lipgloss.Color("#4FB3BF") // harbor teal - highlights
	ColorMuted   = lipgloss.Color("#5C6B73") // grey - secondary text
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError).Bold(true),
	Highlight: lipgloss.NewStyle().Foreground(ColorAccent).Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
}

// Out is the destination for all ux output. Overridable in tests.
var Out io.Writer = os.Stdout

// Titlef prints a bold section heading.
func Titlef(format string, args ...any) {
	fmt.Fprintln(Out, Styles.Title.Render(fmt.Sprintf(format, args...)))
}

// Successf prints a success line with a check mark.
func Successf(format string, args ...any) {
	fmt.Fprintln(Out, Styles.Success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Warnf prints a warning line. Warnings never halt an operation.
func Warnf(format string, args ...any) {
	fmt.Fprintln(Out, Styles.Warning.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Errorf prints an error line.
func Errorf(format string, args ...any) {
	fmt.Fprintln(Out, Styles.Error.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Infof prints a plain status line.
func Infof(format string, args ...any) {
	fmt.Fprintf(Out, format+"\n", args...)
}

// Mutedf prints secondary detail text.
func Mutedf(format string, args ...any) {
	fmt.Fprintln(Out, Styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// Highlight renders a value in the accent style for inline use.
func Highlight(s string) string {
	return Styles.Highlight.Render(s)
}

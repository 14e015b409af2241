// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath     string
	jobsFlag       int
	assumeYes      bool
	nonInteractive bool
	plainPrompts   bool
	listTags       string
	listBranches   string

	rootCmd = &cobra.Command{
		Use:   "relman [revision]",
		Short: "A cli to manage versioned releases of the driftd service",
		Long: `relman builds a requested source revision into a versioned
				release directory, atomically swaps the active_release pointer
				to it, and signals the running driftd so its supervisor
				restarts it against the new release. Previously built versions
				can be rolled back to or cleaned up at any time.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runRoot, // Defined in cmd_upgrade.go
	}

	// --- Rollback ---
	rollbackCmd = &cobra.Command{
		Use:   "rollback",
		Short: "Interactively swap the active release back to a stored version",
		Args:  cobra.NoArgs,
		Run:   runRollback, // Defined in cmd_rollback.go
	}

	// --- Cleanup ---
	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Interactively delete stored versions to reclaim disk space",
		Args:  cobra.NoArgs,
		Run:   runClean, // Defined in cmd_clean.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the relman config file (default ~/.relman/relman.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false,
		"Assume yes for confirmation prompts")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false,
		"Never prompt; confirmations follow --yes, selections abort")
	rootCmd.PersistentFlags().BoolVar(&plainPrompts, "plain", false,
		"Use plain line-based prompts instead of the full-screen forms")

	rootCmd.Flags().IntVarP(&jobsFlag, "jobs", "j", 0,
		"Build parallelism (default from config)")
	rootCmd.Flags().StringVar(&listTags, "list-tags", "",
		"List the newest tags of the named source variant and exit")
	rootCmd.Flags().StringVar(&listBranches, "list-branches", "",
		"List the newest branches of the named source variant and exit")

	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(cleanCmd)
}

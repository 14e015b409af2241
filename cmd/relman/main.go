// Copyright (C) 2025 Driftline Systems (dev@driftline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/driftline/relman/cmd/relman/config"
	"github.com/driftline/relman/pkg/logging"
	"github.com/driftline/relman/pkg/ux"
)

var (
	cfg config.Config
	log *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		log = logging.New(logging.Config{
			Level:   logging.ParseLevel(cfg.LogLevel),
			LogDir:  cfg.LogDir,
			Service: "relman",
		}).With("run_id", uuid.NewString())
		return nil
	}
}

// fatal reports err to the operator and exits non-zero. Every
// mutating flow funnels through here so the log file is flushed
// before the process dies.
func fatal(err error) {
	ux.Errorf("%v", err)
	if log != nil {
		log.Error("operation failed", "error", err)
		_ = log.Close()
	}
	os.Exit(1)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the keywarden CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywarden",
		Short: "Keywarden - a second-factor gate for game servers",
		Long: `Keywarden gates player sessions behind a second authentication
factor (time-based one-time codes, static keys, or single-use keys),
backed by a durable player record store.`,
		Version: version,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

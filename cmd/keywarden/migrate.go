// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/keywarden/keywarden/internal/store"
	"github.com/keywarden/keywarden/internal/xdg"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert a legacy record store to the current format",
		Long: `Convert a legacy flat-binary player record store into the current
versioned format, in place. Running against an already-converted store
is a no-op. The serve command performs this conversion automatically
on startup.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dataDir == "" {
				dataDir = xdg.DataDir()
			}
			path := filepath.Join(dataDir, StoreFile)

			migrated, err := store.MigrateLegacy(path)
			if err != nil {
				return err
			}
			if migrated {
				cmd.Printf("converted legacy store at %s\n", path)
			} else {
				cmd.Printf("nothing to convert at %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory for the record store")

	return cmd
}

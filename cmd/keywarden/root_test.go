// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	t.Run("lists subcommands", func(t *testing.T) {
		cmd := NewRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--help"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "serve")
		assert.Contains(t, out.String(), "migrate")
	})

	t.Run("rejects unknown subcommands", func(t *testing.T) {
		cmd := NewRootCmd()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"bogus"})

		assert.Error(t, cmd.Execute())
	})
}

func TestMigrateCmd(t *testing.T) {
	t.Run("converts a legacy store in place", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, StoreFile)
		// Version tag 1, zero records.
		require.NoError(t, os.WriteFile(path,
			[]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}, 0o600))

		cmd := NewRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"migrate", "--data-dir", dir})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "converted legacy store")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "version: 2")
	})

	t.Run("no-op without a legacy store", func(t *testing.T) {
		cmd := NewRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"migrate", "--data-dir", t.TempDir()})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "nothing to convert")
	})
}

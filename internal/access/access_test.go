// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keywarden/keywarden/internal/access"
)

func TestControlCheck(t *testing.T) {
	ctrl, err := access.New(access.DefaultRoles())
	require.NoError(t, err)
	ctrl.Assign("Dana", "admin")

	t.Run("admin role matches all auth permissions", func(t *testing.T) {
		assert.True(t, ctrl.Check("Dana", "auth:register:other"))
		assert.True(t, ctrl.Check("Dana", "auth:unregister:other"))
	})

	t.Run("principal lookup is case-insensitive", func(t *testing.T) {
		assert.True(t, ctrl.Check("dana", "auth:register:other"))
		assert.True(t, ctrl.Check("DANA", "auth:register:other"))
	})

	t.Run("unassigned principals are denied", func(t *testing.T) {
		assert.False(t, ctrl.Check("mallory", "auth:register:other"))
	})

	t.Run("assignment to an unknown role grants nothing", func(t *testing.T) {
		ctrl.Assign("eve", "superuser")
		assert.False(t, ctrl.Check("eve", "auth:register:other"))
	})

	t.Run("system principal is always allowed", func(t *testing.T) {
		assert.True(t, ctrl.Check("system", "auth:register:other"))
		assert.True(t, ctrl.Check("system", "anything:at:all"))
	})

	t.Run("empty principal is always denied", func(t *testing.T) {
		assert.False(t, ctrl.Check("", "auth:register:other"))
	})
}

func TestControlPatterns(t *testing.T) {
	t.Run("single segment wildcard does not cross separators", func(t *testing.T) {
		ctrl, err := access.New(map[string][]string{
			"moderator": {"auth:*"},
		})
		require.NoError(t, err)
		ctrl.Assign("mabel", "moderator")

		assert.True(t, ctrl.Check("mabel", "auth:status"))
		assert.False(t, ctrl.Check("mabel", "auth:register:other"))
	})

	t.Run("invalid pattern fails compilation", func(t *testing.T) {
		_, err := access.New(map[string][]string{
			"broken": {"auth:["},
		})
		assert.Error(t, err)
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

// Package access provides the authorization predicate gating delegated
// operations: principals map to roles, roles to glob-compiled permission
// patterns.
package access

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/keywarden/keywarden/internal/auth"
)

// Control checks principals against role-based permission patterns.
//
// Thread-safety: roles is immutable after construction; only subjects is
// mutable and protected by mu.
type Control struct {
	roles    map[string][]compiledPermission
	subjects map[string]string // principal (lower-cased) → role
	mu       sync.RWMutex
}

type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// DefaultRoles returns the built-in role definitions. Players get no
// delegated powers; admins may act on other players' registrations.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"admin": {"auth:**"},
	}
}

// New compiles role definitions into a Control. Returns an error when a
// permission pattern fails to compile.
func New(roles map[string][]string) (*Control, error) {
	compiled := make(map[string][]compiledPermission, len(roles))
	for role, patterns := range roles {
		perms := make([]compiledPermission, 0, len(patterns))
		for _, p := range patterns {
			// Permission segments are ':'-separated.
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			perms = append(perms, compiledPermission{pattern: p, glob: g})
		}
		compiled[role] = perms
	}
	return &Control{
		roles:    compiled,
		subjects: make(map[string]string),
	}, nil
}

// Assign maps a principal to a role. Unknown principals have no role and
// are denied everything.
func (c *Control) Assign(principal, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects[strings.ToLower(principal)] = role
}

// Check reports whether the principal holds the permission. The system
// principal is always allowed; the empty principal never is. Callers
// that accept untrusted identities must reserve the system name, the
// gate never binds a connection to it.
func (c *Control) Check(principal, permission string) bool {
	if principal == auth.SystemPrincipal {
		return true
	}
	if principal == "" {
		return false
	}

	c.mu.RLock()
	role := c.subjects[strings.ToLower(principal)]
	c.mu.RUnlock()

	for _, perm := range c.roles[role] {
		if perm.glob.Match(permission) {
			return true
		}
	}
	return false
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

import (
	"sort"
	"strings"
)

// Registry maps method names to method instances. Membership is fixed at
// startup. Lookup is case-insensitive; unknown names resolve to nil,
// which callers map to InvalidMethod.
type Registry struct {
	methods map[string]Method
}

// NewRegistry builds a registry over a fixed set of methods.
func NewRegistry(methods ...Method) *Registry {
	table := make(map[string]Method, len(methods))
	for _, m := range methods {
		table[strings.ToLower(m.Name())] = m
	}
	return &Registry{methods: table}
}

// Resolve returns the method for a name, or nil if unknown.
func (r *Registry) Resolve(name string) Method {
	return r.methods[strings.ToLower(name)]
}

// Names returns the registered method names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

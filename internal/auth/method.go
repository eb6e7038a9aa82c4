// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

import "strings"

// Method is a pluggable credential mechanism. Implementations are
// stateless; all mutable state lives on the Record they are handed.
type Method interface {
	// Name is the canonical method name used in records and commands.
	Name() string

	// AllowsDelegated reports whether a third party may provision this
	// method on another player's behalf.
	AllowsDelegated() bool

	// Register validates proof material and stores credential state on
	// the record. InvalidArgs when the material is malformed or missing.
	Register(rec *Record, args []string) Outcome

	// Authenticate compares presented proof against the record's
	// credential. WrongCredential on mismatch, InvalidArgs when the
	// proof is missing; Success flips rec.Authenticated.
	Authenticate(rec *Record, args []string) Outcome

	// HelpLine is the one-line usage hint for self registration.
	HelpLine() string

	// DelegatedHelpLine is the usage hint for registration on behalf of
	// another player; empty when delegation is disallowed.
	DelegatedHelpLine() string
}

// Enrollable marks methods whose registration completes asynchronously:
// the engine creates a provisional record, runs enrollment off the
// mutation path, and finalizes (or rolls back) on completion.
type Enrollable interface {
	Enrollable()
}

// JoinArgs collapses multi-token proof arguments into the single string
// the methods compare against, tokens separated by single spaces.
func JoinArgs(args []string) string {
	return strings.Join(args, " ")
}

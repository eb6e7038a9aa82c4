// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

import (
	"log/slog"

	"github.com/keywarden/keywarden/internal/totp"
)

// OneTimeKeyMethod is the one-time-use key credential: the key is
// generated server-side, shown once, and consumed on every successful
// authentication. A replacement key is minted in its place.
type OneTimeKeyMethod struct{}

// NewOneTimeKeyMethod creates the one-time-key method.
func NewOneTimeKeyMethod() *OneTimeKeyMethod {
	return &OneTimeKeyMethod{}
}

// Name implements Method.
func (*OneTimeKeyMethod) Name() string { return "onetimekey" }

// AllowsDelegated implements Method. The key is shown only to the
// registrant, so delegation is disallowed.
func (*OneTimeKeyMethod) AllowsDelegated() bool { return false }

// Register implements Method. Proof arguments are ignored; the key is
// generated server-side and the record is immediately authenticated so
// the player can read the key back during the same session.
func (*OneTimeKeyMethod) Register(rec *Record, _ []string) Outcome {
	key, err := totp.GenerateSecret()
	if err != nil {
		slog.Error("one-time key generation failed", "error", err)
		return Unknown
	}
	rec.Secret = key
	rec.Authenticated = true
	return Success
}

// Authenticate implements Method. A match consumes the key and rotates
// in a fresh one.
func (*OneTimeKeyMethod) Authenticate(rec *Record, args []string) Outcome {
	if len(args) == 0 {
		return InvalidArgs
	}
	if JoinArgs(args) != rec.Secret {
		return WrongCredential
	}
	next, err := totp.GenerateSecret()
	if err != nil {
		slog.Error("one-time key rotation failed", "error", err)
		return Unknown
	}
	rec.Secret = next
	rec.Authenticated = true
	return Success
}

// HelpLine implements Method.
func (*OneTimeKeyMethod) HelpLine() string {
	return "- generate a single-use key, replaced on every login"
}

// DelegatedHelpLine implements Method.
func (*OneTimeKeyMethod) DelegatedHelpLine() string { return "" }

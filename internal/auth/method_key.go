// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

// KeyMethod is the static shared-key credential: the presented key is
// stored verbatim and later compared exactly.
type KeyMethod struct{}

// NewKeyMethod creates the static-key method.
func NewKeyMethod() *KeyMethod {
	return &KeyMethod{}
}

// Name implements Method.
func (*KeyMethod) Name() string { return "key" }

// AllowsDelegated implements Method. Admins may set a key for another
// player, so delegation is allowed.
func (*KeyMethod) AllowsDelegated() bool { return true }

// Register implements Method. The key is stored verbatim and the record
// is immediately authenticated.
func (*KeyMethod) Register(rec *Record, args []string) Outcome {
	key := JoinArgs(args)
	if key == "" {
		return InvalidArgs
	}
	rec.Secret = key
	rec.Authenticated = true
	return Success
}

// Authenticate implements Method with an exact string comparison.
func (*KeyMethod) Authenticate(rec *Record, args []string) Outcome {
	if len(args) == 0 {
		return InvalidArgs
	}
	if JoinArgs(args) != rec.Secret {
		return WrongCredential
	}
	rec.Authenticated = true
	return Success
}

// HelpLine implements Method.
func (*KeyMethod) HelpLine() string {
	return "<key> - protect your account with a static key"
}

// DelegatedHelpLine implements Method.
func (*KeyMethod) DelegatedHelpLine() string {
	return "<player> <key> - set a static key on another player's account"
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

// RecordStore is the authoritative table of per-player authentication
// records with durable persistence. The file-backed implementation lives
// in internal/store.
type RecordStore interface {
	// Get returns the record for a player, matching case-insensitively.
	Get(playerID string) (*Record, bool)

	// Contains reports whether the player has a record.
	Contains(playerID string) bool

	// Add creates a record through method.Register. AlreadyRegistered if
	// a record exists, InvalidMethod if method is nil; any non-success
	// outcome from Register rolls the provisional record back. Success
	// persists the store.
	Add(playerID, address string, method Method, args []string) Outcome

	// Authenticate delegates proof verification to the record's method.
	// NotRegistered if absent, AlreadyAuthenticated if already in,
	// InvalidMethod if the record's method is unknown. Persistence after
	// a successful authentication is the engine's responsibility.
	Authenticate(playerID string, args []string) Outcome

	// Remove deletes a record and persists. NotRegistered if absent;
	// NeedAuthentication when requireAuthenticated is set and the record
	// is not authenticated.
	Remove(playerID string, requireAuthenticated bool) Outcome

	// Connecting applies the reauthentication fast path: when the source
	// address matches the last known one (case-insensitively) and the
	// player was last seen within the configured window, the record is
	// re-authenticated without a credential check. It only ever sets
	// Authenticated to true.
	Connecting(playerID, address string)

	// Disconnect clears Authenticated, stamps LastSeenAt and persists.
	Disconnect(playerID string)

	// Save serializes all records durably, rotating the previous file to
	// a backup location first.
	Save() error
}

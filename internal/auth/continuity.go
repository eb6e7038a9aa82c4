// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

import "log/slog"

// Tracker reconciles connection lifecycle signals against the record
// store. It is a pure wrapper with no state of its own: connect may take
// the reauthentication fast path, disconnect always clears the session.
type Tracker struct {
	store RecordStore
}

// NewTracker creates a session continuity tracker over a record store.
func NewTracker(store RecordStore) *Tracker {
	return &Tracker{store: store}
}

// Connected handles a player connect signal.
func (t *Tracker) Connected(playerID, address string) {
	slog.Debug("player connected", "player", playerID, "address", address)
	t.store.Connecting(playerID, address)
}

// Disconnected handles a player disconnect signal.
func (t *Tracker) Disconnected(playerID string) {
	slog.Debug("player disconnected", "player", playerID)
	t.store.Disconnect(playerID)
}

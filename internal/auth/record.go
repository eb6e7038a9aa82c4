// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

import "strings"

// Record is the per-player authentication state. A record exists if and
// only if the player has registered; Authenticated=true implies Method
// and Secret are set. PlayerID never changes after creation.
type Record struct {
	PlayerID      string `yaml:"player_id"`
	Authenticated bool   `yaml:"authenticated"`
	LastAddress   string `yaml:"last_address,omitempty"`
	LastSeenAt    int64  `yaml:"last_seen_at"` // epoch millis of last disconnect/update
	Method        string `yaml:"method"`
	Secret        string `yaml:"secret"`
}

// Key normalizes a player identity for case-insensitive matching.
func Key(playerID string) string {
	return strings.ToLower(playerID)
}

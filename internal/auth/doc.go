// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

// Package auth contains the player authentication domain: credential
// methods, the method registry, the authentication engine, and the
// session continuity tracker.
//
// All record mutation flows through the Engine, which serializes
// operations so that no two register/authenticate/unregister operations
// for the same player run concurrently. Long-latency work (enrollment
// link generation) runs on a background goroutine that never touches
// shared state; its completion re-enters the engine before mutating the
// record store.
package auth

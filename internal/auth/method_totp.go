// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

import (
	"log/slog"
	"time"

	"github.com/keywarden/keywarden/internal/totp"
)

// TOTPMethod is the time-based one-time code credential. Registration
// generates a random seed; verification derives a short numeric code
// from the seed and the current 30-second window.
type TOTPMethod struct {
	shaBits int
	digits  int
	now     func() time.Time
}

// NewTOTPMethod creates the TOTP method. shaBits must be 1, 256 or 512;
// any other value is a configuration error.
func NewTOTPMethod(shaBits, digits int) (*TOTPMethod, error) {
	if digits <= 0 {
		digits = totp.DefaultDigits
	}
	// Probe the width up front so a bad config fails at startup, not at
	// the first authentication attempt.
	if _, err := totp.Generate("AAAAAAAAAAAAAAAA", 0, digits, shaBits); err != nil {
		return nil, err
	}
	return &TOTPMethod{shaBits: shaBits, digits: digits, now: time.Now}, nil
}

// Name implements Method.
func (*TOTPMethod) Name() string { return "totp" }

// AllowsDelegated implements Method. The seed must reach the enrolling
// player's authenticator, so nobody can enable TOTP for someone else.
func (*TOTPMethod) AllowsDelegated() bool { return false }

// Enrollable marks registration as two-phase: the engine finalizes it
// after the enrollment link has been produced.
func (*TOTPMethod) Enrollable() {}

// Register implements Method. Proof arguments are ignored; the seed is
// generated server-side. The record stays unauthenticated until the
// player proves possession of the seed.
func (m *TOTPMethod) Register(rec *Record, _ []string) Outcome {
	seed, err := totp.GenerateSecret()
	if err != nil {
		slog.Error("totp seed generation failed", "error", err)
		return Unknown
	}
	rec.Secret = seed
	rec.Authenticated = false
	return Success
}

// Authenticate implements Method by deriving the code for the current
// window and comparing trimmed, case-insensitively.
func (m *TOTPMethod) Authenticate(rec *Record, args []string) Outcome {
	if len(args) == 0 {
		return InvalidArgs
	}
	ok, err := totp.Verify(JoinArgs(args), rec.Secret, totp.Window(m.now()), m.digits, m.shaBits)
	if err != nil {
		slog.Error("totp verification failed", "error", err)
		return Unknown
	}
	if !ok {
		return WrongCredential
	}
	rec.Authenticated = true
	return Success
}

// HelpLine implements Method.
func (*TOTPMethod) HelpLine() string {
	return "- enroll a time-based one-time code (works with standard authenticator apps)"
}

// DelegatedHelpLine implements Method.
func (*TOTPMethod) DelegatedHelpLine() string { return "" }

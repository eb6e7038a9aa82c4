// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

// Package totp implements the time-based one-time code algorithm used by
// the TOTP credential method: HMAC-based dynamic truncation over a
// 30-second counter derived from wall-clock milliseconds.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // G505: SHA-1 HMAC is a supported legacy width for authenticator compatibility.
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash"
	"strings"
	"time"

	"github.com/samber/oops"
)

const (
	// SecretLength is the number of base32 characters in a generated seed.
	SecretLength = 16

	// DefaultDigits is the standard code length.
	DefaultDigits = 6

	// StepMillis is the width of one time window in milliseconds.
	StepMillis = 30_000
)

// encoding is unpadded base32; generated seeds are always a whole number
// of 40-bit groups so padding never appears.
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh random seed, base32 encoded and
// truncated to SecretLength characters.
func GenerateSecret() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", oops.In("totp").Code("TOTP_SEED_FAILED").Wrap(err)
	}
	return encoding.EncodeToString(raw)[:SecretLength], nil
}

// Window returns the counter value for the given instant.
func Window(at time.Time) int64 {
	return at.UnixMilli() / StepMillis
}

// Generate derives the code for a seed at a given window. shaBits selects
// the HMAC hash width and must be 1, 256 or 512; anything else is a
// configuration error.
func Generate(secret string, window int64, digits, shaBits int) (string, error) {
	if digits <= 0 {
		return "", oops.In("totp").Code("TOTP_BAD_DIGITS").
			With("digits", digits).
			Errorf("digits must be positive")
	}

	key, err := encoding.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return "", oops.In("totp").Code("TOTP_BAD_SEED").Wrap(err)
	}

	newHash, err := hashForBits(shaBits)
	if err != nil {
		return "", err
	}

	msg := make([]byte, 8)
	binary.BigEndian.PutUint64(msg, uint64(window))

	mac := hmac.New(newHash, key)
	mac.Write(msg)
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226 §5.3.
	offset := sum[len(sum)-1] & 0xf
	code := (uint32(sum[offset])&0x7f)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])

	mod := uint32(1)
	for range digits {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, code%mod), nil
}

// Verify reports whether the presented code matches the seed at the given
// window. Comparison is trimmed and case-insensitive.
func Verify(code, secret string, window int64, digits, shaBits int) (bool, error) {
	want, err := Generate(secret, window, digits, shaBits)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(code), want), nil
}

// hashForBits maps a hash width to its constructor.
func hashForBits(shaBits int) (func() hash.Hash, error) {
	switch shaBits {
	case 1:
		return sha1.New, nil
	case 256:
		return sha256.New, nil
	case 512:
		return sha512.New, nil
	default:
		return nil, oops.In("totp").Code("TOTP_BAD_HASH_WIDTH").
			With("sha_bits", shaBits).
			Errorf("hash width must be 1, 256 or 512")
	}
}

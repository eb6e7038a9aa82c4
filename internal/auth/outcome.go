// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

// Outcome is the result of an engine or store operation. Expected
// failures are values of this type, never errors; callers must handle
// every variant or fall through to a generic unknown message.
type Outcome int

// Outcome variants.
const (
	Success Outcome = iota
	AlreadyAuthenticated
	AlreadyRegistered
	Canceled
	Disabled
	InvalidArgs
	InvalidMethod
	NeedAuthentication
	NotRegistered
	ExternalCallFailed
	WrongCredential
	Unknown
)

var outcomeNames = map[Outcome]string{
	Success:              "success",
	AlreadyAuthenticated: "already-authenticated",
	AlreadyRegistered:    "already-registered",
	Canceled:             "canceled-by-listener",
	Disabled:             "disabled-by-config",
	InvalidArgs:          "invalid-arguments",
	InvalidMethod:        "invalid-method",
	NeedAuthentication:   "needs-authentication-first",
	NotRegistered:        "not-registered",
	ExternalCallFailed:   "external-call-failed",
	WrongCredential:      "wrong-credential",
	Unknown:              "unknown-error",
}

// String returns the stable wire-friendly name of the outcome.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown-error"
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package gate

import "github.com/keywarden/keywarden/internal/auth"

// outcomeMessages maps every engine outcome 1:1 onto a user-facing line.
var outcomeMessages = map[auth.Outcome]string{
	auth.Success:              "done",
	auth.AlreadyAuthenticated: "you are already authenticated",
	auth.AlreadyRegistered:    "you already have a second factor enrolled",
	auth.Canceled:             "the operation was blocked",
	auth.Disabled:             "that method is disabled on this server",
	auth.InvalidArgs:          "missing or malformed arguments",
	auth.InvalidMethod:        "unknown authentication method",
	auth.NeedAuthentication:   "authenticate first",
	auth.NotRegistered:        "no second factor enrolled",
	auth.ExternalCallFailed:   "could not reach the enrollment service, try again later",
	auth.WrongCredential:      "wrong key or code",
}

// outcomeMessage renders an outcome; unhandled values fall through to a
// generic failure line.
func outcomeMessage(out auth.Outcome) string {
	if msg, ok := outcomeMessages[out]; ok {
		return msg
	}
	return "something went wrong, try again"
}

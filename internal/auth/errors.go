// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

package auth

import "errors"

// errNoEnrollment reports that an asynchronously enrolled method was
// registered without an enrollment service wired in.
var errNoEnrollment = errors.New("no enrollment service configured")

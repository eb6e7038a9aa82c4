// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keywarden Contributors

// Command keywarden runs the second-factor authentication gate.
package main

import "os"

// version is injected at build time.
var version = "dev"

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

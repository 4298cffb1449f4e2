// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for gpureset.
//
// Configuration is TOML with built-in defaults, environment variable
// overrides, and validation. Library candidate lists left empty fall back
// to the platform defaults chosen by the caller.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags (applied by the caller)
//   - Environment variables (GPURESET_*)
//   - The file named by GPURESET_CONFIG, else ~/.gpureset/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//
// Watch for edits:
//
//	w, err := config.NewWatcher(path, 250*time.Millisecond)
//	for cfg := range w.Updates() { ... }
package config

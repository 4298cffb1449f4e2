// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the gpureset shell.
//
// Colors are lipgloss.AdaptiveColor values so the shell reads on light and
// dark terminals. Theme detects the terminal color profile with termenv;
// NewThemeWithProfile(termenv.Ascii, ...) gives plain output for tests and
// --no-color.
package styles

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shell provides the interactive reset screen.
//
// The screen has a header with the detected GPU, a Reset button, a scrolling
// log of notification lines and a status bar. Pressing the button starts a
// Run in the background; its notifications are read from a channel by a
// tea.Cmd, one message per notification, so the UI goroutine never blocks.
//
// # Lifecycle
//
//	idle --enter/r--> running --events channel closed--> idle
//
// While running the button is disabled and q is refused. ctrl+c always quits.
// A config reload received mid-Run is applied before the next Run starts.
package shell

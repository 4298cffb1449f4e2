// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package gpu

import "errors"

var errNoKeyboardInjection = errors.New("keyboard injection requires Windows")

func systemKeyboard() Keyboard {
	return nil
}

func probeKeyboard() error {
	return errNoKeyboardInjection
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"context"
	"fmt"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// DRIVER RESTART HOTKEY
// =============================================================================

// Virtual-key codes for the Windows graphics driver restart chord.
const (
	VKLWin    uint8 = 0x5B
	VKControl uint8 = 0x11
	VKShift   uint8 = 0x10
	VKB       uint8 = 0x42
)

// RestartChord is Win+Ctrl+Shift+B in press order.
var RestartChord = []uint8{VKLWin, VKControl, VKShift, VKB}

// Keyboard injects synthetic key events.
type Keyboard interface {
	KeyDown(vk uint8) error
	KeyUp(vk uint8) error
}

// HotkeyReset sends the restart chord. The OS gives no feedback, so a
// successful send is reported as success.
func HotkeyReset(caps *capability.Set, kb Keyboard) reset.Operation {
	return func(ctx context.Context) (string, error) {
		if !caps.Available(capability.Keyboard) || kb == nil {
			return "", reset.Missing("keyboard injection")
		}
		if err := pressChord(kb, RestartChord); err != nil {
			return "", reset.CallFailed("send hotkey: %w", err)
		}
		return "", nil
	}
}

// pressChord presses keys in order and releases them in reverse. Keys
// already down are released even when a later key fails.
func pressChord(kb Keyboard, keys []uint8) error {
	pressed := make([]uint8, 0, len(keys))
	var downErr error
	for _, vk := range keys {
		if err := kb.KeyDown(vk); err != nil {
			downErr = fmt.Errorf("key down 0x%02X: %w", vk, err)
			break
		}
		pressed = append(pressed, vk)
	}

	var upErr error
	for i := len(pressed) - 1; i >= 0; i-- {
		if err := kb.KeyUp(pressed[i]); err != nil && upErr == nil {
			upErr = fmt.Errorf("key up 0x%02X: %w", pressed[i], err)
		}
	}
	if downErr != nil {
		return downErr
	}
	return upErr
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package gpu

import (
	"golang.org/x/sys/windows"
)

const keyEventKeyUp = 0x0002

var (
	user32       = windows.NewLazySystemDLL("user32.dll")
	procKeybdEvt = user32.NewProc("keybd_event")
)

// user32Keyboard sends events through keybd_event.
type user32Keyboard struct{}

func systemKeyboard() Keyboard {
	return user32Keyboard{}
}

func (user32Keyboard) send(vk uint8, flags uintptr) error {
	if err := procKeybdEvt.Find(); err != nil {
		return err
	}
	// keybd_event returns void; only a missing proc can fail.
	_, _, _ = procKeybdEvt.Call(uintptr(vk), 0, flags, 0)
	return nil
}

func (k user32Keyboard) KeyDown(vk uint8) error { return k.send(vk, 0) }

func (k user32Keyboard) KeyUp(vk uint8) error { return k.send(vk, keyEventKeyUp) }

func probeKeyboard() error {
	return procKeybdEvt.Find()
}

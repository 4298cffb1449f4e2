// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows && !((linux || darwin || freebsd) && cgo)

package native

func open(name string) (Library, error) {
	return nil, ErrUnsupported
}

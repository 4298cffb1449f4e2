// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !(linux && cgo)

package gpu

import "errors"

var errNVMLUnsupported = errors.New("NVML bindings are not built for this platform")

func openNVML() (ManagementAPI, error) {
	return nil, errNVMLUnsupported
}

func probeNVML() error {
	return errNVMLUnsupported
}

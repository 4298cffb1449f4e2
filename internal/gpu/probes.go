// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"github.com/jeranaias/gpureset/internal/capability"
)

// DefaultProbes returns the availability checks for the real backends.
// The driver probes open the library and look up each entry point the
// corresponding strategy calls.
func DefaultProbes(d Deps, s Settings) map[capability.Name]capability.Probe {
	return map[capability.Name]capability.Probe{
		capability.DriverAPI: func() error {
			return probeDriver(d.Loader, s.DriverLibraries, driverContextSymbols, true)
		},
		capability.PrimaryContext: func() error {
			return probeDriver(d.Loader, s.DriverLibraries, primaryContextSymbols, false)
		},
		capability.NVML:     probeNVML,
		capability.Keyboard: probeKeyboard,
	}
}

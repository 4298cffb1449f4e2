// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gpu implements the GPU reset strategies run by package reset.
//
// Strategies (in default order):
//   - runtime:         cudaDeviceReset through the first CUDA runtime library that loads
//   - driver-context:  create, pop and detach a CUDA driver context on device 0
//   - primary-context: reset the primary context of device 0
//   - nvml:            NVML application-clock reset on the first enumerated device
//   - hotkey:          Win+Ctrl+Shift+B, the Windows graphics driver restart chord
//   - devcon:          disable then enable the GPU through the device-control tool
//
// Every strategy targets a single GPU: device index 0, or the first handle
// the vendor API enumerates. Optional dependencies are checked through a
// capability.Set supplied in Deps; the hardware backends (native loader,
// driver API, NVML, keyboard, command runner) are also injected there so
// tests can replace them.
package gpu

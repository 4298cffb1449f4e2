// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// NVML
// =============================================================================

// DeviceHandle is one GPU enumerated by the management library.
type DeviceHandle struct {
	Index int
	Name  string
	ref   any
}

// NewDeviceHandle wraps a backend-specific device reference.
func NewDeviceHandle(index int, name string, ref any) DeviceHandle {
	return DeviceHandle{Index: index, Name: name, ref: ref}
}

// Ref returns the backend-specific device reference.
func (h DeviceHandle) Ref() any { return h.ref }

// ManagementAPI is the subset of the NVIDIA management library used by the
// NVML strategy. Status codes follow nvmlReturn_t, 0 meaning success.
type ManagementAPI interface {
	Init() error
	Shutdown() error
	DeviceHandles() ([]DeviceHandle, error)
	ResetApplicationClocks(h DeviceHandle) int
}

// ManagementReset initializes NVML, resets the application clocks of the
// first enumerated GPU and always shuts the library down again.
func ManagementReset(caps *capability.Set, open func() (ManagementAPI, error), log *zap.Logger) reset.Operation {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context) (string, error) {
		if !caps.Available(capability.NVML) || open == nil {
			return "", reset.Missing("NVML")
		}

		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		api, err := open()
		if err != nil {
			return "", reset.CallFailed("open NVML: %w", err)
		}
		if err := api.Init(); err != nil {
			return "", reset.CallFailed("NVML init: %w", err)
		}
		defer func() {
			if err := api.Shutdown(); err != nil {
				log.Warn("NVML shutdown failed", zap.Error(err))
			}
		}()

		handles, err := api.DeviceHandles()
		if err != nil {
			return "", reset.CallFailed("enumerate GPUs: %w", err)
		}
		if len(handles) == 0 {
			return "", reset.CallFailed("no GPUs found")
		}

		target := handles[0]
		log.Debug("resetting application clocks via NVML", zap.Int("index", target.Index), zap.String("name", target.Name))
		if status := api.ResetApplicationClocks(target); status != 0 {
			return "", reset.CallFailed("application clock reset returned status %d", status)
		}
		detail := fmt.Sprintf("application clocks reset on device %d", target.Index)
		if target.Name != "" {
			detail += ": " + target.Name
		}
		return detail, nil
	}
}

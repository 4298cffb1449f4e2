// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux && cgo

package gpu

import (
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlLibrary adapts the package-level go-nvml bindings to ManagementAPI.
type nvmlLibrary struct{}

func openNVML() (ManagementAPI, error) {
	return nvmlLibrary{}, nil
}

func nvmlError(op string, ret nvml.Return) error {
	return fmt.Errorf("%s: %s", op, nvml.ErrorString(ret))
}

func (nvmlLibrary) Init() error {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nvmlError("init", ret)
	}
	return nil
}

func (nvmlLibrary) Shutdown() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return nvmlError("shutdown", ret)
	}
	return nil
}

func (nvmlLibrary) DeviceHandles() ([]DeviceHandle, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, nvmlError("device count", ret)
	}
	handles := make([]DeviceHandle, 0, count)
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("device at index %d: %s", i, nvml.ErrorString(ret))
		}
		name, ret := dev.GetName()
		if ret != nvml.SUCCESS {
			name = ""
		}
		handles = append(handles, NewDeviceHandle(i, name, dev))
	}
	return handles, nil
}

func (nvmlLibrary) ResetApplicationClocks(h DeviceHandle) int {
	dev, ok := h.Ref().(nvml.Device)
	if !ok {
		return int(nvml.ERROR_INVALID_ARGUMENT)
	}
	return int(dev.ResetApplicationsClocks())
}

// probeNVML loads and initializes the library once, then shuts it down.
func probeNVML() error {
	ret := nvml.Init()
	if ret == nvml.ERROR_LIBRARY_NOT_FOUND {
		return errors.New("libnvidia-ml not found")
	}
	if ret != nvml.SUCCESS {
		return nvmlError("init", ret)
	}
	_ = nvml.Shutdown()
	return nil
}

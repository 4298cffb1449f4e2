// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/native"
	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// CUDA DRIVER API
// =============================================================================

// Device is a CUDA driver device ordinal handle (CUdevice).
type Device int32

// Context is a CUDA driver context handle (CUcontext).
type Context uintptr

// DriverAPI is the subset of the CUDA driver API the context strategies use.
type DriverAPI interface {
	Init() error
	DeviceGet(ordinal int) (Device, error)
	CtxCreate(dev Device) (Context, error)
	CtxPopCurrent() (Context, error)
	CtxDetach(ctx Context) error
	PrimaryCtxRetain(dev Device) (Context, error)
	PrimaryCtxReset(dev Device) error
	PrimaryCtxRelease(dev Device) error
	Close() error
}

// Driver entry points.
const (
	symCuInit              = "cuInit"
	symCuDeviceGet         = "cuDeviceGet"
	symCuCtxCreate         = "cuCtxCreate_v2"
	symCuCtxPopCurrent     = "cuCtxPopCurrent_v2"
	symCuCtxDetach         = "cuCtxDetach"
	symCuCtxDestroy        = "cuCtxDestroy_v2"
	symCuPrimaryCtxRetain  = "cuDevicePrimaryCtxRetain"
	symCuPrimaryCtxReset   = "cuDevicePrimaryCtxReset_v2"
	symCuPrimaryCtxRelease = "cuDevicePrimaryCtxRelease_v2"
)

var (
	driverContextSymbols  = []string{symCuInit, symCuDeviceGet, symCuCtxCreate, symCuCtxPopCurrent}
	primaryContextSymbols = []string{symCuInit, symCuDeviceGet, symCuPrimaryCtxRetain, symCuPrimaryCtxReset, symCuPrimaryCtxRelease}
)

// cuResultNames covers the CUresult codes a reset is likely to hit.
var cuResultNames = map[int32]string{
	1:   "CUDA_ERROR_INVALID_VALUE",
	2:   "CUDA_ERROR_OUT_OF_MEMORY",
	3:   "CUDA_ERROR_NOT_INITIALIZED",
	4:   "CUDA_ERROR_DEINITIALIZED",
	100: "CUDA_ERROR_NO_DEVICE",
	101: "CUDA_ERROR_INVALID_DEVICE",
	201: "CUDA_ERROR_INVALID_CONTEXT",
	216: "CUDA_ERROR_CONTEXT_ALREADY_IN_USE",
	304: "CUDA_ERROR_OPERATING_SYSTEM",
	709: "CUDA_ERROR_CONTEXT_IS_DESTROYED",
	999: "CUDA_ERROR_UNKNOWN",
}

// DriverError is a non-zero CUresult from a driver call.
type DriverError struct {
	Call string
	Code int32
}

func (e *DriverError) Error() string {
	if name, ok := cuResultNames[e.Code]; ok {
		return fmt.Sprintf("%s returned %d (%s)", e.Call, e.Code, name)
	}
	return fmt.Sprintf("%s returned %d", e.Call, e.Code)
}

// OpenDriver loads the first CUDA driver library in names.
func OpenDriver(loader native.Loader, names []string) (DriverAPI, error) {
	lib, err := native.OpenFirst(loader, names)
	if err != nil {
		return nil, err
	}
	return &cudaDriver{lib: lib}, nil
}

type cudaDriver struct {
	lib native.Library
}

func (d *cudaDriver) call(symbol string, args ...uintptr) error {
	r, err := d.lib.Call(symbol, args...)
	if err != nil {
		return err
	}
	if code := native.Int32(r); code != 0 {
		return &DriverError{Call: symbol, Code: code}
	}
	return nil
}

func (d *cudaDriver) Init() error {
	return d.call(symCuInit, 0)
}

func (d *cudaDriver) DeviceGet(ordinal int) (Device, error) {
	var dev int32
	var pin runtime.Pinner
	pin.Pin(&dev)
	defer pin.Unpin()

	err := d.call(symCuDeviceGet, uintptr(unsafe.Pointer(&dev)), uintptr(ordinal))
	return Device(dev), err
}

func (d *cudaDriver) CtxCreate(dev Device) (Context, error) {
	var ctx uintptr
	var pin runtime.Pinner
	pin.Pin(&ctx)
	defer pin.Unpin()

	err := d.call(symCuCtxCreate, uintptr(unsafe.Pointer(&ctx)), 0, uintptr(dev))
	return Context(ctx), err
}

func (d *cudaDriver) CtxPopCurrent() (Context, error) {
	var ctx uintptr
	var pin runtime.Pinner
	pin.Pin(&ctx)
	defer pin.Unpin()

	err := d.call(symCuCtxPopCurrent, uintptr(unsafe.Pointer(&ctx)))
	return Context(ctx), err
}

// CtxDetach releases the context. Drivers that dropped cuCtxDetach get
// cuCtxDestroy_v2 instead.
func (d *cudaDriver) CtxDetach(ctx Context) error {
	if d.lib.Has(symCuCtxDetach) {
		return d.call(symCuCtxDetach, uintptr(ctx))
	}
	return d.call(symCuCtxDestroy, uintptr(ctx))
}

func (d *cudaDriver) PrimaryCtxRetain(dev Device) (Context, error) {
	var ctx uintptr
	var pin runtime.Pinner
	pin.Pin(&ctx)
	defer pin.Unpin()

	err := d.call(symCuPrimaryCtxRetain, uintptr(unsafe.Pointer(&ctx)), uintptr(dev))
	return Context(ctx), err
}

func (d *cudaDriver) PrimaryCtxReset(dev Device) error {
	return d.call(symCuPrimaryCtxReset, uintptr(dev))
}

func (d *cudaDriver) PrimaryCtxRelease(dev Device) error {
	return d.call(symCuPrimaryCtxRelease, uintptr(dev))
}

func (d *cudaDriver) Close() error {
	return d.lib.Close()
}

// probeDriver checks that a driver library loads and exports symbols.
// For the detach step either cuCtxDetach or cuCtxDestroy_v2 suffices.
func probeDriver(loader native.Loader, names []string, symbols []string, needDetach bool) error {
	lib, err := native.OpenFirst(loader, names)
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := native.RequireSymbols(lib, symbols...); err != nil {
		return err
	}
	if needDetach && !lib.Has(symCuCtxDetach) && !lib.Has(symCuCtxDestroy) {
		return fmt.Errorf("%s: %w: %s", lib.Name(), native.ErrSymbolNotFound, symCuCtxDestroy)
	}
	return nil
}

// =============================================================================
// STRATEGIES
// =============================================================================

// DriverContextReset creates a context on device 0, pops it off the
// calling thread and detaches it.
func DriverContextReset(caps *capability.Set, open func() (DriverAPI, error)) reset.Operation {
	return func(ctx context.Context) (string, error) {
		if !caps.Available(capability.DriverAPI) || open == nil {
			return "", reset.Missing("CUDA driver API")
		}
		return withDriver(open, func(api DriverAPI) (string, error) {
			if err := api.Init(); err != nil {
				return "", driverFailure(err)
			}
			dev, err := api.DeviceGet(targetDevice)
			if err != nil {
				return "", driverFailure(err)
			}
			if _, err := api.CtxCreate(dev); err != nil {
				return "", driverFailure(err)
			}
			popped, err := api.CtxPopCurrent()
			if err != nil {
				return "", driverFailure(err)
			}
			if err := api.CtxDetach(popped); err != nil {
				return "", driverFailure(err)
			}
			return "", nil
		})
	}
}

// PrimaryContextReset selects device 0, takes its current primary context
// and resets it.
func PrimaryContextReset(caps *capability.Set, open func() (DriverAPI, error)) reset.Operation {
	return func(ctx context.Context) (string, error) {
		if !caps.Available(capability.PrimaryContext) || open == nil {
			return "", reset.Missing("CUDA primary context API")
		}
		return withDriver(open, func(api DriverAPI) (string, error) {
			if err := api.Init(); err != nil {
				return "", driverFailure(err)
			}
			dev, err := api.DeviceGet(targetDevice)
			if err != nil {
				return "", driverFailure(err)
			}
			if _, err := api.PrimaryCtxRetain(dev); err != nil {
				return "", driverFailure(err)
			}
			if err := api.PrimaryCtxReset(dev); err != nil {
				_ = api.PrimaryCtxRelease(dev)
				return "", driverFailure(err)
			}
			if err := api.PrimaryCtxRelease(dev); err != nil {
				return "", driverFailure(err)
			}
			return "", nil
		})
	}
}

// withDriver opens the driver, pins the goroutine to its OS thread for
// the duration of fn, and closes the driver afterwards.
func withDriver(open func() (DriverAPI, error), fn func(DriverAPI) (string, error)) (string, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	api, err := open()
	if err != nil {
		return "", reset.CallFailed("open CUDA driver: %w", err)
	}
	defer api.Close()
	return fn(api)
}

func driverFailure(err error) error {
	var de *DriverError
	if errors.As(err, &de) {
		return &reset.Failure{Kind: reset.KindCallFailed, Cause: de.Error(), Err: de}
	}
	return reset.CallFailed("%w", err)
}

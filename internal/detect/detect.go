// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// gpuDetectTimeout is the default timeout for GPU detection operations.
// CANCELLATION: Context enables timeout and cancellation
const gpuDetectTimeout = 10 * time.Second

// ErrNoNvidiaSmi is returned when no nvidia-smi binary could be run.
var ErrNoNvidiaSmi = errors.New("nvidia-smi not available")

// =============================================================================
// GPU INFO
// =============================================================================

// GpuInfo describes one NVIDIA GPU reported by nvidia-smi.
type GpuInfo struct {
	// Index is the nvidia-smi device index.
	Index int
	// Name of the GPU (e.g., "NVIDIA GeForce GTX 1050 Ti")
	Name string
	// VramGB is the total VRAM in gigabytes
	VramGB uint32
	// Driver version if available
	Driver string
	// BusID is the PCI bus address (e.g., "00000000:01:00.0")
	BusID string
	// DeviceID is the combined PCI device and vendor ID (device<<16 | vendor)
	DeviceID uint32
	// SubsystemID is the PCI subsystem ID
	SubsystemID uint32
}

// String returns a formatted string representation of the GPU info.
func (g *GpuInfo) String() string {
	s := fmt.Sprintf("%s (%dGB VRAM)", g.Name, g.VramGB)
	if g.Driver != "" {
		s += fmt.Sprintf(" [Driver: %s]", g.Driver)
	}
	return s
}

// VendorID returns the PCI vendor ID.
func (g *GpuInfo) VendorID() uint16 {
	return uint16(g.DeviceID & 0xFFFF)
}

// ProductID returns the PCI device ID.
func (g *GpuInfo) ProductID() uint16 {
	return uint16(g.DeviceID >> 16)
}

// HardwareID returns the Windows device-instance hardware ID for the GPU,
// in the form accepted by the device-control tool. Empty when the PCI IDs
// are unknown.
func (g *GpuInfo) HardwareID() string {
	if g.DeviceID == 0 {
		return ""
	}
	id := fmt.Sprintf(`PCI\VEN_%04X&DEV_%04X`, g.VendorID(), g.ProductID())
	if g.SubsystemID != 0 {
		id += fmt.Sprintf("&SUBSYS_%08X", g.SubsystemID)
	}
	return id
}

// =============================================================================
// DETECTOR
// =============================================================================

// QueryFunc runs nvidia-smi at path with args and returns its stdout.
type QueryFunc func(ctx context.Context, path string, args ...string) ([]byte, error)

// Detector queries nvidia-smi. The zero value runs the real binary.
type Detector struct {
	// Query overrides how nvidia-smi is invoked.
	Query QueryFunc
	// Paths overrides the nvidia-smi locations tried, in order.
	Paths []string
}

var nvidiaSmiArgs = []string{
	"--query-gpu=index,name,memory.total,driver_version,pci.bus_id,pci.device_id,pci.sub_device_id",
	"--format=csv,noheader,nounits",
}

func execQuery(ctx context.Context, path string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, path, args...).Output()
}

// Detect lists NVIDIA GPUs in nvidia-smi index order.
// CANCELLATION: Context enables timeout and cancellation
func (d Detector) Detect(ctx context.Context) ([]GpuInfo, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gpuDetectTimeout)
		defer cancel()
	}

	query := d.Query
	if query == nil {
		query = execQuery
	}
	paths := d.Paths
	if len(paths) == 0 {
		paths = getNvidiaSmiPaths()
	}

	var errs []error
	for _, path := range paths {
		output, err := query(ctx, path, nvidiaSmiArgs...)
		if err == nil {
			return parseNvidiaSmi(string(output))
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrNoNvidiaSmi, errors.Join(errs...))
}

// parseNvidiaSmi parses CSV rows produced with nvidiaSmiArgs.
func parseNvidiaSmi(output string) ([]GpuInfo, error) {
	var gpus []GpuInfo
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// nvidia-smi outputs CSV with ", " as delimiter
		parts := strings.Split(line, ", ")
		if len(parts) < 7 {
			return nil, fmt.Errorf("unexpected nvidia-smi row: %q", line)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		index, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid GPU index %q: %w", parts[0], err)
		}
		g := GpuInfo{
			Index:  index,
			Name:   parts[1],
			Driver: parts[3],
			BusID:  parts[4],
		}
		// Memory is in MiB, convert to GB
		if vramMB, err := strconv.ParseFloat(parts[2], 64); err == nil {
			g.VramGB = uint32(vramMB/1024.0 + 0.5)
		}
		g.DeviceID = parseHex32(parts[5])
		g.SubsystemID = parseHex32(parts[6])
		gpus = append(gpus, g)
	}
	return gpus, nil
}

// parseHex32 parses values like "0x1C8C10DE"; "[N/A]" and garbage yield 0.
func parseHex32(s string) uint32 {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// getNvidiaSmiPaths returns possible paths for nvidia-smi based on OS.
func getNvidiaSmiPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}

// =============================================================================
// CACHED DETECTION
// =============================================================================

var (
	gpuCache         []GpuInfo
	gpuCacheErr      error
	gpuCacheTime     time.Time
	gpuCacheMu       sync.Mutex
	gpuCacheDuration = 5 * time.Minute
)

// DetectGPUs lists GPUs with the default Detector.
func DetectGPUs(ctx context.Context) ([]GpuInfo, error) {
	return Detector{}.Detect(ctx)
}

// DetectGPUsCached returns a cached detection result if fresh (5 minutes).
func DetectGPUsCached(ctx context.Context) ([]GpuInfo, error) {
	gpuCacheMu.Lock()
	defer gpuCacheMu.Unlock()

	if !gpuCacheTime.IsZero() && time.Since(gpuCacheTime) < gpuCacheDuration {
		return gpuCache, gpuCacheErr
	}
	gpuCache, gpuCacheErr = DetectGPUs(ctx)
	gpuCacheTime = time.Now()
	return gpuCache, gpuCacheErr
}

// ClearGPUCache forces fresh detection on the next cached call.
func ClearGPUCache() {
	gpuCacheMu.Lock()
	defer gpuCacheMu.Unlock()
	gpuCache = nil
	gpuCacheErr = nil
	gpuCacheTime = time.Time{}
}

// Primary returns the GPU every reset strategy targets (index 0), if any.
func Primary(gpus []GpuInfo) (GpuInfo, bool) {
	for _, g := range gpus {
		if g.Index == 0 {
			return g, true
		}
	}
	if len(gpus) > 0 {
		return gpus[0], true
	}
	return GpuInfo{}, false
}

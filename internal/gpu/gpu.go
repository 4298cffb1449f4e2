// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/native"
	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// STRATEGY IDENTIFIERS
// =============================================================================

// Strategy identifiers accepted in the configured order.
const (
	IDRuntime        = "runtime"
	IDDriverContext  = "driver-context"
	IDPrimaryContext = "primary-context"
	IDNVML           = "nvml"
	IDHotkey         = "hotkey"
	IDDevcon         = "devcon"
)

// targetDevice is the ordinal every device-indexed strategy acts on.
const targetDevice = 0

// Descriptor describes a strategy for listings.
type Descriptor struct {
	ID          string
	Name        string
	Capability  capability.Name
	Description string
}

var descriptors = []Descriptor{
	{IDRuntime, "CUDA Runtime Reset", "", "cudaDeviceReset via the first CUDA runtime library that loads"},
	{IDDriverContext, "CUDA Driver Context Reset", capability.DriverAPI, "create, pop and detach a driver context on device 0"},
	{IDPrimaryContext, "CUDA Primary Context Reset", capability.PrimaryContext, "reset the primary context of device 0"},
	{IDNVML, "NVML GPU Reset", capability.NVML, "NVML application-clock reset on the first enumerated GPU"},
	{IDHotkey, "Win Key Driver Reset", capability.Keyboard, "send Win+Ctrl+Shift+B (effect cannot be verified)"},
	{IDDevcon, "DevCon GPU Toggle", "", "disable then re-enable the GPU with the device-control tool"},
}

// Descriptors returns every known strategy in default order.
func Descriptors() []Descriptor {
	return append([]Descriptor(nil), descriptors...)
}

// DefaultOrder returns the default execution order.
func DefaultOrder() []string {
	ids := make([]string, len(descriptors))
	for i, d := range descriptors {
		ids[i] = d.ID
	}
	return ids
}

// Lookup returns the descriptor for id.
func Lookup(id string) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings holds the tunable parameters of the strategies.
type Settings struct {
	// Order lists strategy IDs in execution order. Empty means DefaultOrder.
	Order []string
	// RuntimeLibraries are CUDA runtime library names, preferred first.
	RuntimeLibraries []string
	// DriverLibraries are CUDA driver library names, preferred first.
	DriverLibraries []string
	// DevconTool is the device-control executable.
	DevconTool string
	// HardwareID identifies the GPU for the device-control tool.
	HardwareID string
}

// DefaultHardwareID is the device the toggle strategy targets unless configured.
const DefaultHardwareID = `PCI\VEN_10DE&DEV_1C8C&SUBSYS_07981028`

// DefaultRuntimeLibraries returns the platform's CUDA runtime candidates, newest first.
func DefaultRuntimeLibraries() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"cudart64_125.dll", "cudart64_120.dll", "cudart64_110.dll"}
	case "darwin":
		return []string{"libcudart.dylib"}
	default:
		return []string{"libcudart.so.12", "libcudart.so.11.0", "libcudart.so"}
	}
}

// DefaultDriverLibraries returns the platform's CUDA driver candidates.
func DefaultDriverLibraries() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"nvcuda.dll"}
	case "darwin":
		return []string{"libcuda.dylib"}
	default:
		return []string{"libcuda.so.1", "libcuda.so"}
	}
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Order:            DefaultOrder(),
		RuntimeLibraries: DefaultRuntimeLibraries(),
		DriverLibraries:  DefaultDriverLibraries(),
		DevconTool:       "devcon",
		HardwareID:       DefaultHardwareID,
	}
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps are the backends the strategies call into.
type Deps struct {
	Capabilities   *capability.Set
	Loader         native.Loader
	OpenDriver     func() (DriverAPI, error)
	OpenManagement func() (ManagementAPI, error)
	Keyboard       Keyboard
	Commands       CommandRunner
	Logger         *zap.Logger
}

// SystemDeps wires the real platform backends and probes capabilities
// for s before returning.
func SystemDeps(s Settings, logger *zap.Logger) Deps {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := Deps{
		Loader:         native.System,
		OpenManagement: openNVML,
		Keyboard:       systemKeyboard(),
		Commands:       ExecRunner{},
		Logger:         logger,
	}
	d.OpenDriver = func() (DriverAPI, error) { return OpenDriver(d.Loader, s.DriverLibraries) }
	d.Capabilities = capability.New(DefaultProbes(d, s))
	d.Capabilities.Detect()
	return d
}

// =============================================================================
// BUILD
// =============================================================================

var (
	// ErrUnknownStrategy is returned for an ID that names no strategy.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrDuplicateStrategy is returned when an ID appears twice in the order.
	ErrDuplicateStrategy = errors.New("duplicate strategy")
)

// ValidateOrder checks that every ID is known and listed once.
func ValidateOrder(order []string) error {
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if _, ok := Lookup(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: %q", ErrDuplicateStrategy, id)
		}
		seen[id] = true
	}
	return nil
}

// Build assembles the strategies named by s.Order, in that order.
func Build(s Settings, d Deps) ([]reset.Strategy, error) {
	order := s.Order
	if len(order) == 0 {
		order = DefaultOrder()
	}
	if err := ValidateOrder(order); err != nil {
		return nil, err
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	strategies := make([]reset.Strategy, 0, len(order))
	for _, id := range order {
		desc, _ := Lookup(id)
		strategies = append(strategies, reset.Strategy{
			ID:   desc.ID,
			Name: desc.Name,
			Op:   operation(id, s, d),
		})
	}
	return strategies, nil
}

func operation(id string, s Settings, d Deps) reset.Operation {
	log := d.Logger.With(zap.String("strategy", id))
	switch id {
	case IDRuntime:
		return RuntimeReset(d.Loader, s.RuntimeLibraries, log)
	case IDDriverContext:
		return DriverContextReset(d.Capabilities, d.OpenDriver)
	case IDPrimaryContext:
		return PrimaryContextReset(d.Capabilities, d.OpenDriver)
	case IDNVML:
		return ManagementReset(d.Capabilities, d.OpenManagement, log)
	case IDHotkey:
		return HotkeyReset(d.Capabilities, d.Keyboard)
	case IDDevcon:
		return DeviceToggle(d.Commands, s.DevconTool, s.HardwareID, log)
	default:
		return nil
	}
}

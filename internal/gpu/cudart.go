// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/native"
	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// CUDA RUNTIME RESET
// =============================================================================

const symCudaDeviceReset = "cudaDeviceReset"

// errAllLibrariesFailed is the cause reported when no candidate reset the device.
const errAllLibrariesFailed = "reset failed on all tried libraries"

// RuntimeReset calls cudaDeviceReset through the first candidate library
// that loads and returns success. Candidates are tried in order; a load
// failure or a non-zero return moves on to the next name.
func RuntimeReset(loader native.Loader, candidates []string, log *zap.Logger) reset.Operation {
	names := append([]string(nil), candidates...)
	if log == nil {
		log = zap.NewNop()
	}

	return func(ctx context.Context) (string, error) {
		// The runtime binds device state to the calling thread.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		var (
			attempts []error
			loaded   bool
		)
		for _, name := range names {
			lib, err := loader.Open(name)
			if err != nil {
				log.Debug("runtime library not loadable", zap.String("library", name), zap.Error(err))
				attempts = append(attempts, err)
				continue
			}
			loaded = true

			code, err := callReset(lib)
			if err != nil {
				log.Debug("cudaDeviceReset unavailable", zap.String("library", name), zap.Error(err))
				attempts = append(attempts, err)
				continue
			}
			if code != 0 {
				log.Debug("cudaDeviceReset failed", zap.String("library", name), zap.Int32("code", code))
				attempts = append(attempts, fmt.Errorf("%s: %s returned %d", name, symCudaDeviceReset, code))
				continue
			}
			return fmt.Sprintf("%s returned 0 using %s", symCudaDeviceReset, name), nil
		}

		kind := reset.KindCallFailed
		if !loaded {
			kind = reset.KindDependencyAbsent
		}
		return "", &reset.Failure{
			Kind:  kind,
			Cause: errAllLibrariesFailed,
			Err:   errors.Join(attempts...),
		}
	}
}

func callReset(lib native.Library) (int32, error) {
	defer lib.Close()
	r, err := lib.Call(symCudaDeviceReset)
	if err != nil {
		return 0, err
	}
	return native.Int32(r), nil
}

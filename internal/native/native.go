// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package native loads shared libraries by name and calls their exported
// C entry points.
//
// On Windows this goes through golang.org/x/sys/windows. On Linux and
// macOS it uses dlopen/dlsym and needs cgo. Other builds get
// ErrUnsupported from every Open.
//
// Call passes arguments in integer registers and returns the raw return
// register. Entry points that return a C int must be read with Int32.
// Pointers passed as arguments must stay valid (pinned) for the duration
// of the call.
package native

import (
	"errors"
	"fmt"
)

// MaxArgs is the largest number of arguments Call accepts.
const MaxArgs = 6

var (
	// ErrUnsupported is returned when this build cannot load native code.
	ErrUnsupported = errors.New("native library loading is not supported on this platform")
	// ErrSymbolNotFound is returned when a library lacks the requested export.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrTooManyArgs is returned when Call receives more than MaxArgs arguments.
	ErrTooManyArgs = errors.New("too many arguments")
	// ErrNoCandidates is returned by OpenFirst for an empty name list.
	ErrNoCandidates = errors.New("no library names given")
)

// Library is a loaded shared library.
type Library interface {
	// Name returns the name the library was opened with.
	Name() string
	// Has reports whether the library exports symbol.
	Has(symbol string) bool
	// Call invokes symbol with integer arguments.
	Call(symbol string, args ...uintptr) (uintptr, error)
	// Close unloads the library.
	Close() error
}

// Loader opens libraries by name.
type Loader interface {
	Open(name string) (Library, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(name string) (Library, error)

// Open calls f(name).
func (f LoaderFunc) Open(name string) (Library, error) { return f(name) }

// System is the platform loader.
var System Loader = LoaderFunc(open)

// OpenFirst opens the first name in names that loads.
func OpenFirst(l Loader, names []string) (Library, error) {
	if len(names) == 0 {
		return nil, ErrNoCandidates
	}
	var errs []error
	for _, name := range names {
		lib, err := l.Open(name)
		if err == nil {
			return lib, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// Int32 reads a C int return value out of the raw return register.
func Int32(r uintptr) int32 {
	return int32(uint32(r))
}

// RequireSymbols returns an error naming the first symbol lib does not export.
func RequireSymbols(lib Library, symbols ...string) error {
	for _, sym := range symbols {
		if !lib.Has(sym) {
			return fmt.Errorf("%s: %w: %s", lib.Name(), ErrSymbolNotFound, sym)
		}
	}
	return nil
}

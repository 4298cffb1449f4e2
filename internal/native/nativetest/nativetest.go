// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package nativetest provides in-memory shared libraries for tests.
package nativetest

import (
	"fmt"
	"sync"

	"github.com/jeranaias/gpureset/internal/native"
)

// Func is a fake exported function.
type Func func(args ...uintptr) uintptr

// Library is a fake native.Library backed by Go functions.
type Library struct {
	LibName string
	Symbols map[string]Func

	mu     sync.Mutex
	calls  []string
	closed bool
}

// Name returns the library name.
func (l *Library) Name() string { return l.LibName }

// Has reports whether the symbol is registered.
func (l *Library) Has(symbol string) bool {
	_, ok := l.Symbols[symbol]
	return ok
}

// Call records the call and invokes the registered function.
func (l *Library) Call(symbol string, args ...uintptr) (uintptr, error) {
	fn, ok := l.Symbols[symbol]
	if !ok {
		return 0, fmt.Errorf("%s: %w: %s", l.LibName, native.ErrSymbolNotFound, symbol)
	}
	l.mu.Lock()
	l.calls = append(l.calls, symbol)
	l.mu.Unlock()
	return fn(args...), nil
}

// Close marks the library closed.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Calls returns the symbols called so far, in order.
func (l *Library) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Closed reports whether Close was called.
func (l *Library) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Loader is a fake native.Loader. Names missing from Libraries fail to load.
type Loader struct {
	Libraries map[string]*Library

	mu     sync.Mutex
	opened []string
}

// Open returns the registered library or a load error.
func (l *Loader) Open(name string) (native.Library, error) {
	l.mu.Lock()
	l.opened = append(l.opened, name)
	l.mu.Unlock()

	lib, ok := l.Libraries[name]
	if !ok {
		return nil, fmt.Errorf("load %s: cannot open shared object file", name)
	}
	return lib, nil
}

// Opened returns every name passed to Open, in order.
func (l *Loader) Opened() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.opened...)
}

// Returns is a Func that always returns code.
func Returns(code int32) Func {
	return func(...uintptr) uintptr { return uintptr(uint32(code)) }
}

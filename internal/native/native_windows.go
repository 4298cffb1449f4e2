// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package native

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

// =============================================================================
// WINDOWS DLL LOADER
// =============================================================================

type dll struct {
	name string
	d    *windows.DLL

	mu    sync.Mutex
	procs map[string]*windows.Proc
}

func open(name string) (Library, error) {
	d, err := windows.LoadDLL(name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return &dll{name: name, d: d, procs: make(map[string]*windows.Proc)}, nil
}

func (l *dll) Name() string { return l.name }

func (l *dll) proc(symbol string) (*windows.Proc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.procs[symbol]; ok {
		return p, nil
	}
	p, err := l.d.FindProc(symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", l.name, ErrSymbolNotFound, symbol)
	}
	l.procs[symbol] = p
	return p, nil
}

func (l *dll) Has(symbol string) bool {
	_, err := l.proc(symbol)
	return err == nil
}

func (l *dll) Call(symbol string, args ...uintptr) (uintptr, error) {
	if len(args) > MaxArgs {
		return 0, ErrTooManyArgs
	}
	p, err := l.proc(symbol)
	if err != nil {
		return 0, err
	}
	// The third value is GetLastError, which is meaningless for the
	// C entry points called here.
	r, _, _ := p.Call(args...)
	return r, nil
}

func (l *dll) Close() error {
	return l.d.Release()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build (linux || darwin || freebsd) && cgo

package native

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef uintptr_t (*gpureset_fn)(uintptr_t, uintptr_t, uintptr_t,
                                 uintptr_t, uintptr_t, uintptr_t);

static uintptr_t gpureset_call(void *fn, uintptr_t a0, uintptr_t a1,
                               uintptr_t a2, uintptr_t a3, uintptr_t a4,
                               uintptr_t a5) {
	return ((gpureset_fn)fn)(a0, a1, a2, a3, a4, a5);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// =============================================================================
// DLOPEN LOADER
// =============================================================================

type dl struct {
	name   string
	handle unsafe.Pointer

	mu   sync.Mutex
	syms map[string]unsafe.Pointer
}

func dlerror() error {
	msg := C.dlerror()
	if msg == nil {
		return errors.New("unknown dlopen error")
	}
	return errors.New(C.GoString(msg))
}

func open(name string) (Library, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	handle := C.dlopen(cname, C.RTLD_NOW|C.RTLD_LOCAL)
	if handle == nil {
		return nil, fmt.Errorf("load %s: %w", name, dlerror())
	}
	return &dl{name: name, handle: handle, syms: make(map[string]unsafe.Pointer)}, nil
}

func (l *dl) Name() string { return l.name }

func (l *dl) sym(symbol string) (unsafe.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.syms[symbol]; ok {
		return p, nil
	}
	if l.handle == nil {
		return nil, fmt.Errorf("%s: library closed", l.name)
	}

	csym := C.CString(symbol)
	defer C.free(unsafe.Pointer(csym))

	p := C.dlsym(l.handle, csym)
	if p == nil {
		return nil, fmt.Errorf("%s: %w: %s", l.name, ErrSymbolNotFound, symbol)
	}
	l.syms[symbol] = p
	return p, nil
}

func (l *dl) Has(symbol string) bool {
	_, err := l.sym(symbol)
	return err == nil
}

func (l *dl) Call(symbol string, args ...uintptr) (uintptr, error) {
	if len(args) > MaxArgs {
		return 0, ErrTooManyArgs
	}
	fn, err := l.sym(symbol)
	if err != nil {
		return 0, err
	}
	var a [MaxArgs]uintptr
	copy(a[:], args)
	r := C.gpureset_call(fn,
		C.uintptr_t(a[0]), C.uintptr_t(a[1]), C.uintptr_t(a[2]),
		C.uintptr_t(a[3]), C.uintptr_t(a[4]), C.uintptr_t(a[5]))
	return uintptr(r), nil
}

func (l *dl) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return nil
	}
	rc := C.dlclose(l.handle)
	l.handle = nil
	l.syms = nil
	if rc != 0 {
		return fmt.Errorf("close %s: %w", l.name, dlerror())
	}
	return nil
}

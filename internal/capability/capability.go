// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package capability tracks which optional external dependencies are
// available to the reset strategies.
//
// Each dependency has its own probe. Probes run once (Detect) and the
// results are then answered from memory, so every strategy sees the same
// answer for the lifetime of the process.
package capability

import (
	"errors"
	"sort"
	"sync"
)

// Name identifies one external dependency.
type Name string

const (
	// DriverAPI is the CUDA driver library with context create/detach.
	DriverAPI Name = "driver-api"
	// PrimaryContext is the CUDA driver primary-context reset entry point.
	PrimaryContext Name = "primary-context"
	// NVML is the NVIDIA management library.
	NVML Name = "nvml"
	// Keyboard is OS-level keyboard event injection.
	Keyboard Name = "keyboard"
)

// ErrNotProbed is the reason reported for a name that has no probe.
var ErrNotProbed = errors.New("no probe registered")

// Probe returns nil when the dependency is usable, or the reason it is not.
type Probe func() error

// Status is the cached result of one probe.
type Status struct {
	Name      Name
	Available bool
	Reason    error
}

// Set answers availability questions for a fixed group of dependencies.
// The zero value is not usable; use New or Static.
type Set struct {
	probes map[Name]Probe

	once    sync.Once
	results map[Name]Status
}

// New creates a Set from probes. Nothing runs until Detect or the first query.
func New(probes map[Name]Probe) *Set {
	p := make(map[Name]Probe, len(probes))
	for name, probe := range probes {
		p[name] = probe
	}
	return &Set{probes: p}
}

// Static creates a Set with fixed answers, for tests and forced modes.
func Static(available map[Name]bool) *Set {
	probes := make(map[Name]Probe, len(available))
	for name, ok := range available {
		if ok {
			probes[name] = func() error { return nil }
		} else {
			probes[name] = func() error { return errors.New("disabled") }
		}
	}
	return New(probes)
}

// Detect runs every probe exactly once. Later calls are no-ops.
// A panicking probe counts as unavailable.
func (s *Set) Detect() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.results = make(map[Name]Status, len(s.probes))
		for name, probe := range s.probes {
			s.results[name] = run(name, probe)
		}
	})
}

func run(name Name, probe Probe) (st Status) {
	st.Name = name
	defer func() {
		if p := recover(); p != nil {
			st.Available = false
			st.Reason = errors.New("probe panicked")
		}
	}()
	if probe == nil {
		st.Reason = ErrNotProbed
		return st
	}
	if err := probe(); err != nil {
		st.Reason = err
		return st
	}
	st.Available = true
	return st
}

// Available reports whether the named dependency can be used.
func (s *Set) Available(name Name) bool {
	return s.Status(name).Available
}

// Reason returns why the dependency is unavailable, or nil.
func (s *Set) Reason(name Name) error {
	return s.Status(name).Reason
}

// Status returns the cached probe result for name.
func (s *Set) Status(name Name) Status {
	if s == nil {
		return Status{Name: name, Reason: ErrNotProbed}
	}
	s.Detect()
	st, ok := s.results[name]
	if !ok {
		return Status{Name: name, Reason: ErrNotProbed}
	}
	return st
}

// Names returns the registered dependency names, sorted.
func (s *Set) Names() []Name {
	if s == nil {
		return nil
	}
	names := make([]Name, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Report returns every probe result, sorted by name.
func (s *Set) Report() []Status {
	if s == nil {
		return nil
	}
	s.Detect()
	out := make([]Status, 0, len(s.results))
	for _, st := range s.results {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

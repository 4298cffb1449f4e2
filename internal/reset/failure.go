// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reset

import (
	"errors"
	"fmt"
)

// =============================================================================
// FAILURE KINDS
// =============================================================================

// Kind classifies why a strategy failed. The Runner treats every kind the
// same way; the kind exists for reporting and history.
type Kind int

const (
	// KindNone is the kind of a successful outcome.
	KindNone Kind = iota
	// KindDependencyAbsent means an optional capability was never available.
	KindDependencyAbsent
	// KindCallFailed means an available API was invoked and reported an error.
	KindCallFailed
	// KindProcessFailed means a spawned tool could not start or exited non-zero.
	KindProcessFailed
)

// String returns the string representation of the failure kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDependencyAbsent:
		return "dependency-absent"
	case KindCallFailed:
		return "call-failed"
	case KindProcessFailed:
		return "process-failed"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) Kind {
	switch s {
	case "dependency-absent":
		return KindDependencyAbsent
	case "call-failed":
		return KindCallFailed
	case "process-failed":
		return KindProcessFailed
	default:
		return KindNone
	}
}

// =============================================================================
// FAILURE ERROR
// =============================================================================

// Failure is the error returned by a strategy operation.
type Failure struct {
	Kind  Kind
	Cause string
	Err   error
}

// Error returns the one-line description shown to the user.
func (f *Failure) Error() string {
	if f.Cause != "" {
		return f.Cause
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return f.Kind.String()
}

// Unwrap returns the underlying error, if any.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Missing reports that an optional dependency is not installed.
func Missing(dependency string) *Failure {
	return &Failure{
		Kind:  KindDependencyAbsent,
		Cause: dependency + " not installed",
	}
}

// CallFailed reports that an API call returned an error indicator.
func CallFailed(format string, args ...any) *Failure {
	err := fmt.Errorf(format, args...)
	return &Failure{
		Kind:  KindCallFailed,
		Cause: err.Error(),
		Err:   errors.Unwrap(err),
	}
}

// ProcessFailed reports that an external tool failed.
func ProcessFailed(format string, args ...any) *Failure {
	err := fmt.Errorf(format, args...)
	return &Failure{
		Kind:  KindProcessFailed,
		Cause: err.Error(),
		Err:   errors.Unwrap(err),
	}
}

// classify converts any operation error into a Failure.
// Errors that are not Failures count as call failures.
func classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: KindCallFailed, Cause: err.Error(), Err: err}
}

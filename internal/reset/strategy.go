// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reset

import (
	"context"
	"time"
)

// Operation attempts one reset technique. It returns an optional detail
// for the success line, or an error describing why it failed.
type Operation func(ctx context.Context) (detail string, err error)

// Strategy is one independently attempted reset technique.
type Strategy struct {
	// ID is the stable identifier used by configuration (e.g. "devcon").
	ID string
	// Name is shown to the user (e.g. "DevCon GPU Toggle").
	Name string
	// Op performs the attempt.
	Op Operation
}

// Status is the lifecycle state of a strategy within a Run.
type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusSucceeded
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStarted:
		return "started"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) Status {
	switch s {
	case "started":
		return StatusStarted
	case "succeeded":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// Outcome records what happened to one strategy.
type Outcome struct {
	StrategyID string
	Strategy   string
	Status     Status
	Kind       Kind
	Detail     string
	Err        error
	Duration   time.Duration
}

// Run is one end-to-end execution of all strategies.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Succeeded returns the number of strategies that succeeded.
func (r *Run) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusSucceeded {
			n++
		}
	}
	return n
}

// Failed returns the number of strategies that failed.
func (r *Run) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Duration returns the wall time of the Run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

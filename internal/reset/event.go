// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reset

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventType identifies a notification in the progress stream.
type EventType int

const (
	EventStarted EventType = iota
	EventSucceeded
	EventFailed
	EventFinished
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so events encode readably.
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is one progress notification.
type Event struct {
	RunID      string    `json:"run_id"`
	Seq        int       `json:"seq"`
	Type       EventType `json:"type"`
	StrategyID string    `json:"strategy_id,omitempty"`
	Strategy   string    `json:"strategy,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Time       time.Time `json:"time"`
}

// SummaryLine is the text of the terminal notification.
const SummaryLine = "All strategies attempted."

// Line renders the event as a human-readable log line.
func (e Event) Line() string {
	switch e.Type {
	case EventStarted:
		return fmt.Sprintf("Starting %s...", e.Strategy)
	case EventSucceeded:
		if e.Detail != "" {
			return fmt.Sprintf("%s succeeded (%s).", e.Strategy, e.Detail)
		}
		return fmt.Sprintf("%s succeeded.", e.Strategy)
	case EventFailed:
		return fmt.Sprintf("%s failed: %s", e.Strategy, e.Detail)
	case EventFinished:
		return SummaryLine
	default:
		return ""
	}
}

// =============================================================================
// SINKS
// =============================================================================

// Sink receives the ordered notification stream of a Run.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// ChanSink forwards events to a channel. The send blocks if the channel is
// full, so the consumer must keep draining it.
type ChanSink chan<- Event

// Emit sends ev on the channel.
func (c ChanSink) Emit(ev Event) { c <- ev }

// Collector records every event it receives. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends ev.
func (c *Collector) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of the recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Lines returns the rendered lines of the recorded events.
func (c *Collector) Lines() []string {
	events := c.Events()
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, ev.Line())
	}
	return lines
}

type discardSink struct{}

func (discardSink) Emit(Event) {}

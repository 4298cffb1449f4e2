// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reset

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a Run is requested while another Run
// on the same Runner has not finished.
var ErrRunInProgress = errors.New("reset run already in progress")

// eventBuffer sizes the channel returned by Start. Four events per
// strategy covers a full Run without blocking the worker on a slow reader.
const eventBuffer = 32

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes a fixed list of strategies, one at a time.
type Runner struct {
	strategies []Strategy
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
	running    atomic.Bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides the run ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *Runner) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// New creates a Runner over strategies. The slice is copied; the order is
// the execution order of every Run.
func New(strategies []Strategy, opts ...Option) *Runner {
	r := &Runner{
		strategies: append([]Strategy(nil), strategies...),
		logger:     zap.NewNop(),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Strategies returns a copy of the registered strategies in execution order.
func (r *Runner) Strategies() []Strategy {
	return append([]Strategy(nil), r.strategies...)
}

// Running reports whether a Run is currently executing.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run attempts every strategy in order and returns the finished Run.
// The only error is ErrRunInProgress; individual strategy failures are
// reported through the sink and the returned Run.
func (r *Runner) Run(ctx context.Context, sink Sink) (*Run, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	if sink == nil {
		sink = discardSink{}
	}
	return r.execute(ctx, sink), nil
}

// Start runs in a background goroutine. The event channel is closed after
// EventFinished has been delivered; the run channel then yields the
// finished Run and is closed.
func (r *Runner) Start(ctx context.Context) (<-chan Event, <-chan *Run, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, nil, ErrRunInProgress
	}

	events := make(chan Event, eventBuffer)
	done := make(chan *Run, 1)

	go func() {
		defer close(done)

		run := r.execute(ctx, ChanSink(events))
		close(events)
		// Free the runner before publishing so a consumer reacting to done
		// can start the next Run immediately.
		r.running.Store(false)
		done <- run
	}()

	return events, done, nil
}

// execute is the body of a Run. Callers hold the running flag.
func (r *Runner) execute(ctx context.Context, sink Sink) *Run {
	run := &Run{
		ID:        r.newID(),
		StartedAt: r.now(),
		Outcomes:  make([]Outcome, 0, len(r.strategies)),
	}
	log := r.logger.With(zap.String("run_id", run.ID))
	log.Info("reset run started", zap.Int("strategies", len(r.strategies)))

	seq := 0
	emit := func(ev Event) {
		seq++
		ev.RunID = run.ID
		ev.Seq = seq
		ev.Time = r.now()
		sink.Emit(ev)
	}

	for _, s := range r.strategies {
		emit(Event{Type: EventStarted, StrategyID: s.ID, Strategy: s.Name})
		log.Debug("strategy started", zap.String("strategy", s.ID))

		start := r.now()
		detail, err := r.attempt(ctx, s)
		outcome := Outcome{
			StrategyID: s.ID,
			Strategy:   s.Name,
			Duration:   r.now().Sub(start),
		}

		if f := classify(err); f != nil {
			outcome.Status = StatusFailed
			outcome.Kind = f.Kind
			outcome.Detail = f.Error()
			outcome.Err = f
			emit(Event{
				Type:       EventFailed,
				StrategyID: s.ID,
				Strategy:   s.Name,
				Detail:     f.Error(),
				Kind:       f.Kind.String(),
			})
			log.Warn("strategy failed",
				zap.String("strategy", s.ID),
				zap.Stringer("kind", f.Kind),
				zap.Duration("duration", outcome.Duration),
				zap.Error(f))
		} else {
			outcome.Status = StatusSucceeded
			outcome.Detail = detail
			emit(Event{
				Type:       EventSucceeded,
				StrategyID: s.ID,
				Strategy:   s.Name,
				Detail:     detail,
			})
			log.Info("strategy succeeded",
				zap.String("strategy", s.ID),
				zap.String("detail", detail),
				zap.Duration("duration", outcome.Duration))
		}
		run.Outcomes = append(run.Outcomes, outcome)
	}

	run.FinishedAt = r.now()
	emit(Event{Type: EventFinished})
	log.Info("reset run finished",
		zap.Int("succeeded", run.Succeeded()),
		zap.Int("failed", run.Failed()),
		zap.Duration("duration", run.Duration()))

	return run
}

// attempt invokes one operation. A panic is contained and reported as a
// call failure so the remaining strategies still run. Operations see ctx
// values but never its cancellation: a started operation runs to completion.
func (r *Runner) attempt(ctx context.Context, s Strategy) (detail string, err error) {
	defer func() {
		if p := recover(); p != nil {
			detail = ""
			err = &Failure{Kind: KindCallFailed, Cause: fmt.Sprintf("panic: %v", p)}
		}
	}()
	if s.Op == nil {
		return "", CallFailed("no operation registered")
	}
	return s.Op(context.WithoutCancel(ctx))
}

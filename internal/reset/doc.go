// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reset runs an ordered list of GPU reset strategies.
//
// A Runner executes every registered Strategy in a fixed order. Each
// strategy is attempted exactly once per Run; a failing strategy never
// stops the ones after it. Progress is streamed to a Sink as Events, and a
// single terminal EventFinished closes every Run.
//
// # Key Types
//
//   - Strategy: display name plus the operation that attempts the reset
//   - Failure: typed error returned by operations (dependency absent,
//     call failed, external process failed)
//   - Event: one notification line (started, succeeded, failed, finished)
//   - Run: the ordered outcomes of one invocation
//
// # Usage
//
//	runner := reset.New(strategies, reset.WithLogger(logger))
//	run, err := runner.Run(ctx, reset.SinkFunc(func(ev reset.Event) {
//		fmt.Println(ev.Line())
//	}))
//
// Background execution for interactive front ends:
//
//	events, done, err := runner.Start(ctx)
//	for ev := range events {
//		// render ev.Line()
//	}
//	run := <-done
package reset

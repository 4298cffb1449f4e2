// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists reset Run history in SQLite.
//
// History is opt-in. Each Run is stored with its ordered outcomes so that
// `gpureset history` can show what was attempted and what happened.
//
// # Key Types
//
//   - RunStore: SQLite-backed history of reset Runs
//   - RunSummary: Lightweight row for listing
//
// # Usage
//
//	store, err := storage.Open(ctx, path)
//	defer store.Close()
//	err = store.Save(ctx, run)
//	recent, err := store.Recent(ctx, 10)
//	run, err := store.Get(ctx, recent[0].ID)
//
// # Storage Location
//
// The database lives at ~/.gpureset/history.db unless configured otherwise.
package storage

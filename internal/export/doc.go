// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes recorded reset Runs to files.
//
// # Formats
//
//   - Markdown: summary and an outcome table, suitable for bug reports
//   - JSON: the complete Run with every outcome
//
// # Usage
//
//	exporter, err := export.ForFormat("markdown", nil)
//	path, err := export.ExportToFile(run, exporter, &export.Options{OutputDir: "."})
package export

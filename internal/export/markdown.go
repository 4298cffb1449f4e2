// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports Runs to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a Run to Markdown format.
func (e *MarkdownExporter) Export(run *reset.Run) ([]byte, error) {
	if run == nil {
		return nil, errNilRun
	}
	if run.StartedAt.IsZero() {
		return nil, fmt.Errorf("run %s has no start time", run.ID)
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString(fmt.Sprintf("run: %s\n", run.ID))
		sb.WriteString(fmt.Sprintf("date: %s\n", run.StartedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("exported: %s\n", e.options.now().Format(time.RFC3339)))
		sb.WriteString("generator: gpureset\n")
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# GPU reset run %s\n\n", run.ID))
	sb.WriteString(fmt.Sprintf("- **Started**: %s\n", formatTimestamp(run.StartedAt)))
	sb.WriteString(fmt.Sprintf("- **Duration**: %s\n", formatDuration(run.Duration())))
	sb.WriteString(fmt.Sprintf("- **Result**: %d succeeded, %d failed\n\n", run.Succeeded(), run.Failed()))

	sb.WriteString("| # | Strategy | Status | Kind | Detail | Time |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for i, o := range run.Outcomes {
		kind := ""
		if o.Status == reset.StatusFailed {
			kind = o.Kind.String()
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n",
			i+1,
			escapeCell(o.Strategy),
			o.Status,
			kind,
			escapeCell(o.Detail),
			formatDuration(o.Duration)))
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// escapeCell keeps a value inside one table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

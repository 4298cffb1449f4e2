// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// RunDocument is the JSON form of a Run.
type RunDocument struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Outcomes   []OutcomeDocument `json:"outcomes"`
}

// OutcomeDocument is the JSON form of an Outcome.
type OutcomeDocument struct {
	StrategyID string `json:"strategy_id"`
	Strategy   string `json:"strategy"`
	Status     string `json:"status"`
	Kind       string `json:"kind,omitempty"`
	Detail     string `json:"detail,omitempty"`
	DurationNS int64  `json:"duration_ns"`
}

// NewRunDocument converts run for encoding.
func NewRunDocument(run *reset.Run) RunDocument {
	doc := RunDocument{
		ID:         run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Succeeded:  run.Succeeded(),
		Failed:     run.Failed(),
		Outcomes:   make([]OutcomeDocument, len(run.Outcomes)),
	}
	for i, o := range run.Outcomes {
		doc.Outcomes[i] = OutcomeDocument{
			StrategyID: o.StrategyID,
			Strategy:   o.Strategy,
			Status:     o.Status.String(),
			Detail:     o.Detail,
			DurationNS: int64(o.Duration),
		}
		if o.Status == reset.StatusFailed {
			doc.Outcomes[i].Kind = o.Kind.String()
		}
	}
	return doc
}

// JSONExporter exports Runs to JSON format.
// JSON exports always include the complete Run regardless of options.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a Run to JSON format.
func (e *JSONExporter) Export(run *reset.Run) ([]byte, error) {
	if run == nil {
		return nil, errNilRun
	}
	return json.MarshalIndent(NewRunDocument(run), "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gpureset/internal/reset"
)

func sampleRun() *reset.Run {
	start := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	return &reset.Run{
		ID:         "8f14e45f-ceea-467f-a0e6-0a5c1b7c2d11",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Outcomes: []reset.Outcome{
			{StrategyID: "runtime", Strategy: "CUDA Runtime Reset", Status: reset.StatusFailed,
				Kind: reset.KindDependencyAbsent, Detail: "reset failed on all tried libraries", Duration: 3 * time.Millisecond},
			{StrategyID: "devcon", Strategy: "DevCon GPU Toggle", Status: reset.StatusSucceeded,
				Duration: 1200 * time.Millisecond},
		},
	}
}

func fixedOptions(dir string) *Options {
	return &Options{
		OutputDir:       dir,
		IncludeMetadata: true,
		Now:             func() time.Time { return time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC) },
	}
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(fixedOptions("")).Export(sampleRun())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\nrun: 8f14e45f"))
	assert.Contains(t, md, "exported: 2025-03-15T00:00:00Z")
	assert.Contains(t, md, "- **Result**: 1 succeeded, 1 failed")
	assert.Contains(t, md, "- **Duration**: 1.50s")
	assert.Contains(t, md, "| 1 | CUDA Runtime Reset | failed | dependency-absent | reset failed on all tried libraries | 3ms |")
	assert.Contains(t, md, "| 2 | DevCon GPU Toggle | succeeded |  |  | 1.20s |")
}

func TestMarkdownExporter_WithoutMetadata(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{}).Export(sampleRun())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "# GPU reset run"))
}

func TestMarkdownExporter_Invalid(t *testing.T) {
	_, err := NewMarkdownExporter(nil).Export(nil)
	assert.Error(t, err)
	_, err = NewMarkdownExporter(nil).Export(&reset.Run{ID: "x"})
	assert.Error(t, err)
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleRun())
	require.NoError(t, err)

	var doc RunDocument
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, 1, doc.Succeeded)
	require.Len(t, doc.Outcomes, 2)
	assert.Equal(t, "dependency-absent", doc.Outcomes[0].Kind)
	assert.Empty(t, doc.Outcomes[1].Kind)
	assert.Equal(t, int64(1200*time.Millisecond), doc.Outcomes[1].DurationNS)
}

func TestForFormat(t *testing.T) {
	for name, ext := range map[string]string{"markdown": ".md", "MD": ".md", "json": ".json"} {
		e, err := ForFormat(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, ext, e.FileExtension())
	}
	_, err := ForFormat("html", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := ExportToFile(sampleRun(), NewJSONExporter(nil), fixedOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "gpureset_run_8f14e45f_20250314_092653.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"strategy_id": "devcon"`)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b-c_d", sanitizeFilename(`a/b:c d`))
	assert.Equal(t, "run", sanitizeFilename(""))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "2.50s", formatDuration(2500*time.Millisecond))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gpureset/internal/reset"
)

type scriptedRunner struct {
	results map[string]CommandResult
	calls   []string
}

func (r *scriptedRunner) Run(_ context.Context, name string, args ...string) CommandResult {
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
	return r.results[args[0]]
}

func TestDeviceToggle(t *testing.T) {
	const hwid = `PCI\VEN_10DE&DEV_1C8C&SUBSYS_07981028`
	tests := []struct {
		name      string
		results   map[string]CommandResult
		wantErr   string
		wantCalls []string
	}{
		{
			name:      "disable then enable",
			wantCalls: []string{"devcon disable " + hwid, "devcon enable " + hwid},
		},
		{
			name:      "disable fails",
			results:   map[string]CommandResult{"disable": {Code: 2}},
			wantErr:   "devcon disable exited with status 2",
			wantCalls: []string{"devcon disable " + hwid},
		},
		{
			name:      "enable fails",
			results:   map[string]CommandResult{"enable": {Code: 1}},
			wantErr:   "devcon enable exited with status 1",
			wantCalls: []string{"devcon disable " + hwid, "devcon enable " + hwid},
		},
		{
			name:      "tool missing",
			results:   map[string]CommandResult{"disable": {Code: 1, Err: errors.New("executable file not found")}},
			wantErr:   "devcon disable: executable file not found",
			wantCalls: []string{"devcon disable " + hwid},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &scriptedRunner{results: tt.results}
			_, err := DeviceToggle(r, "devcon", hwid, nil)(context.Background())
			assert.Equal(t, tt.wantCalls, r.calls)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
			var f *reset.Failure
			require.True(t, errors.As(err, &f))
			assert.Equal(t, reset.KindProcessFailed, f.Kind)
		})
	}
}

// cancellingRunner cancels the caller's context once disable has run.
type cancellingRunner struct {
	cancel  context.CancelFunc
	calls   []string
	ctxErrs []error
}

func (r *cancellingRunner) Run(ctx context.Context, _ string, args ...string) CommandResult {
	r.calls = append(r.calls, args[0])
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	if args[0] == "disable" {
		r.cancel()
	}
	return CommandResult{}
}

func TestDeviceToggle_EnableRunsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &cancellingRunner{cancel: cancel}

	_, err := DeviceToggle(r, "devcon", "PCI\\VEN_10DE", nil)(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"disable", "enable"}, r.calls)
	assert.Equal(t, []error{nil, nil}, r.ctxErrs)
}

func TestDeviceToggle_InterruptDoesNotKillTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	dir := t.TempDir()
	logPath := filepath.Join(dir, "steps.log")
	tool := filepath.Join(dir, "devcon")
	script := "#!/bin/sh\necho \"$1 start\" >> '" + logPath + "'\nsleep 0.3\necho \"$1 done\" >> '" + logPath + "'\n"
	require.NoError(t, os.WriteFile(tool, []byte(script), 0755))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	defer cancel()

	_, err := DeviceToggle(ExecRunner{}, tool, "PCI\\VEN_10DE", nil)(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "disable start\ndisable done\nenable start\nenable done\n", string(data))
}

func TestExecRunner_MissingTool(t *testing.T) {
	res := ExecRunner{}.Run(context.Background(), "gpureset-no-such-tool")
	assert.Error(t, res.Err)
	assert.Equal(t, 1, res.Code)
}

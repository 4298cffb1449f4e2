// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/native/nativetest"
	"github.com/jeranaias/gpureset/internal/reset"
)

func TestDefaultOrder(t *testing.T) {
	assert.Equal(t, []string{
		IDRuntime, IDDriverContext, IDPrimaryContext, IDNVML, IDHotkey, IDDevcon,
	}, DefaultOrder())
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name    string
		order   []string
		wantErr error
	}{
		{"default", DefaultOrder(), nil},
		{"subset", []string{IDDevcon, IDRuntime}, nil},
		{"empty", nil, nil},
		{"unknown", []string{IDRuntime, "reboot"}, ErrUnknownStrategy},
		{"duplicate", []string{IDNVML, IDNVML}, ErrDuplicateStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrder(tt.order)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuild_HonoursOrder(t *testing.T) {
	s := DefaultSettings()
	s.Order = []string{IDDevcon, IDHotkey, IDRuntime}

	strategies, err := Build(s, Deps{})
	require.NoError(t, err)
	require.Len(t, strategies, 3)
	assert.Equal(t, "DevCon GPU Toggle", strategies[0].Name)
	assert.Equal(t, "Win Key Driver Reset", strategies[1].Name)
	assert.Equal(t, "CUDA Runtime Reset", strategies[2].Name)
	for _, st := range strategies {
		assert.NotNil(t, st.Op)
	}
}

func TestBuild_RejectsUnknown(t *testing.T) {
	s := DefaultSettings()
	s.Order = []string{"bogus"}
	_, err := Build(s, Deps{})
	assert.True(t, errors.Is(err, ErrUnknownStrategy))
}

// With no dependency present every strategy fails, and the Run still
// reaches the summary line.
func TestBuild_NothingInstalled(t *testing.T) {
	d := Deps{
		Capabilities: capability.Static(map[capability.Name]bool{
			capability.DriverAPI:      false,
			capability.PrimaryContext: false,
			capability.NVML:           false,
			capability.Keyboard:       false,
		}),
		Loader: &nativetest.Loader{},
		Commands: &scriptedRunner{results: map[string]CommandResult{
			"disable": {Code: 1, Err: errors.New("executable file not found")},
		}},
		Logger: zaptest.NewLogger(t),
	}
	strategies, err := Build(DefaultSettings(), d)
	require.NoError(t, err)

	c := &reset.Collector{}
	run, err := reset.New(strategies).Run(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 0, run.Succeeded())
	assert.Equal(t, 6, run.Failed())
	lines := c.Lines()
	require.Len(t, lines, 13)
	assert.Equal(t, "CUDA Runtime Reset failed: reset failed on all tried libraries", lines[1])
	assert.Equal(t, "CUDA Driver Context Reset failed: CUDA driver API not installed", lines[3])
	assert.Equal(t, "NVML GPU Reset failed: NVML not installed", lines[7])
	assert.Equal(t, "Win Key Driver Reset failed: keyboard injection not installed", lines[9])
	assert.Equal(t, reset.SummaryLine, lines[12])

	kinds := make([]reset.Kind, 0, len(run.Outcomes))
	for _, o := range run.Outcomes {
		kinds = append(kinds, o.Kind)
	}
	assert.Equal(t, []reset.Kind{
		reset.KindDependencyAbsent,
		reset.KindDependencyAbsent,
		reset.KindDependencyAbsent,
		reset.KindDependencyAbsent,
		reset.KindDependencyAbsent,
		reset.KindProcessFailed,
	}, kinds)
}

func TestDefaultProbes_DriverLibraryMissing(t *testing.T) {
	d := Deps{Loader: &nativetest.Loader{}}
	caps := capability.New(DefaultProbes(d, DefaultSettings()))
	assert.False(t, caps.Available(capability.DriverAPI))
	assert.False(t, caps.Available(capability.PrimaryContext))
	assert.Error(t, caps.Reason(capability.DriverAPI))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvConfigPath, "GPURESET_LOG_LEVEL", "GPURESET_LOG_FILE", "GPURESET_DEVCON",
		"GPURESET_HARDWARE_ID", "GPURESET_HISTORY", "GPURESET_ORDER",
	} {
		t.Setenv(k, "")
	}
	if v, ok := os.LookupEnv("NO_COLOR"); ok {
		os.Unsetenv("NO_COLOR")
		t.Cleanup(func() { os.Setenv("NO_COLOR", v) })
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultOrder, cfg.Reset.Order)
	assert.Equal(t, "devcon", cfg.Devcon.Tool)
	assert.Equal(t, `PCI\VEN_10DE&DEV_1C8C&SUBSYS_07981028`, cfg.Devcon.HardwareID)
	assert.False(t, cfg.History.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultOrder, cfg.Reset.Order)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromPath_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[reset]
order = ["devcon", "runtime"]

[runtime]
libraries = ["libcudart.so.12"]

[devcon]
hardware_id = 'PCI\VEN_10DE&DEV_2204'

[log]
level = "DEBUG"

[history]
enabled = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"devcon", "runtime"}, cfg.Reset.Order)
	assert.Equal(t, []string{"libcudart.so.12"}, cfg.Runtime.Libraries)
	assert.Empty(t, cfg.Driver.Libraries)
	assert.Equal(t, `PCI\VEN_10DE&DEV_2204`, cfg.Devcon.HardwareID)
	assert.Equal(t, "devcon", cfg.Devcon.Tool)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.History.Enabled)
}

func TestLoadFromPath_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad syntax", "[reset\n", "failed to decode"},
		{"unknown key", "[reset]\nspeed = 3\n", "unknown keys: reset.speed"},
		{"duplicate strategy", "[reset]\norder = [\"nvml\", \"nvml\"]\n", "listed twice"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))
			_, err := LoadFromPath(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReturnsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Reset.Order = []string{"nvml", "", "nvml"}
	cfg.Log.Level = "trace"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 3)
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GPURESET_ORDER", "hotkey, devcon")
	t.Setenv("GPURESET_HISTORY", "1")
	t.Setenv("GPURESET_DEVCON", `C:\tools\devcon.exe`)

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, []string{"hotkey", "devcon"}, cfg.Reset.Order)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, `C:\tools\devcon.exe`, cfg.Devcon.Tool)
}

func TestPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom.toml")
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.toml", p)
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Reset.Order = []string{"nvml"}
	cfg.Driver.Libraries = []string{"libcuda.so.1"}
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# gpureset configuration file")

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("devcon.tool", "pnputil"))
	require.NoError(t, cfg.Set("history.enabled", "true"))
	require.NoError(t, cfg.Set("reset.order", "nvml,runtime"))

	v, err := cfg.Get("devcon.tool")
	require.NoError(t, err)
	assert.Equal(t, "pnputil", v)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, []string{"nvml", "runtime"}, cfg.Reset.Order)

	assert.Error(t, cfg.Set("history.enabled", "maybe"))
	assert.Error(t, cfg.Set("nope.field", "x"))
	_, err = cfg.Get("devcon")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "reset.order")
	assert.Contains(t, keys, "devcon.hardware_id")
	assert.Contains(t, keys, "history.path")
	for _, k := range keys {
		_, err := Default().Get(k)
		assert.NoError(t, err, k)
	}
}

func TestClone_Independent(t *testing.T) {
	cfg := Default()
	c := cfg.Clone()
	c.Reset.Order[0] = "devcon"
	assert.Equal(t, "runtime", cfg.Reset.Order[0])
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(Default(), path))

	w, err := NewWatcher(path, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	cfg := Default()
	cfg.Devcon.Tool = "pnputil"
	require.NoError(t, Save(cfg, path))

	select {
	case u := <-w.Updates():
		require.NoError(t, u.Err)
		assert.Equal(t, "pnputil", u.Config.Devcon.Tool)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestReadFile_IgnoresEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GPURESET_DEVCON", "pnputil")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[devcon]\ntool = \"devcon64\"\n"), 0600))

	raw, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "devcon64", raw.Devcon.Tool)

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "pnputil", loaded.Devcon.Tool)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/config"
	"github.com/jeranaias/gpureset/internal/detect"
	"github.com/jeranaias/gpureset/internal/gpu"
	"github.com/jeranaias/gpureset/internal/native/nativetest"
	"github.com/jeranaias/gpureset/internal/reset"
	"github.com/jeranaias/gpureset/internal/ui/shell"
)

// =============================================================================
// HELPERS
// =============================================================================

// fixedCommands answers every device-control invocation with code.
type fixedCommands struct{ code int }

func (f fixedCommands) Run(context.Context, string, ...string) gpu.CommandResult {
	return gpu.CommandResult{Code: f.code}
}

// nopKeyboard accepts every key event.
type nopKeyboard struct{}

func (nopKeyboard) KeyDown(uint8) error { return nil }
func (nopKeyboard) KeyUp(uint8) error   { return nil }

// fakeDeps reports every capability missing and no loadable library, so
// only the hotkey and device-control strategies can succeed.
func fakeDeps(devconCode int) func(gpu.Settings, *zap.Logger) gpu.Deps {
	return func(_ gpu.Settings, logger *zap.Logger) gpu.Deps {
		return gpu.Deps{
			Capabilities: capability.Static(map[capability.Name]bool{
				capability.DriverAPI:      false,
				capability.PrimaryContext: false,
				capability.NVML:           false,
				capability.Keyboard:       true,
			}),
			Loader:   &nativetest.Loader{},
			Keyboard: nopKeyboard{},
			Commands: fixedCommands{code: devconCode},
			Logger:   logger,
		}
	}
}

type testEnv struct {
	app     *App
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	dir     string
	cfgPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, k := range []string{
		config.EnvConfigPath, "GPURESET_LOG_LEVEL", "GPURESET_LOG_FILE", "GPURESET_DEVCON",
		"GPURESET_HARDWARE_ID", "GPURESET_HISTORY", "GPURESET_ORDER",
	} {
		t.Setenv(k, "")
	}
	if v, ok := os.LookupEnv("NO_COLOR"); ok {
		os.Unsetenv("NO_COLOR")
		t.Cleanup(func() { os.Setenv("NO_COLOR", v) })
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	e := &testEnv{
		out:     &bytes.Buffer{},
		errOut:  &bytes.Buffer{},
		dir:     dir,
		cfgPath: filepath.Join(dir, "config.toml"),
	}
	e.app = &App{
		In:          strings.NewReader(""),
		Out:         e.out,
		Err:         e.errOut,
		Interactive: func() bool { return false },
		Confirm: func(string) (bool, error) {
			t.Fatal("unexpected prompt")
			return false, nil
		},
		Deps: fakeDeps(0),
		Detect: func(context.Context) ([]detect.GpuInfo, error) {
			return []detect.GpuInfo{{
				Index:       0,
				Name:        "NVIDIA GeForce GTX 1060 6GB",
				VramGB:      6,
				Driver:      "550.54",
				BusID:       "00000000:01:00.0",
				DeviceID:    0x1C0310DE,
				SubsystemID: 0x07981028,
			}}, nil
		},
		RunProgram: func(tea.Model) error { return nil },
	}
	return e
}

// exec runs args with the test config and log file and returns the exit code.
func (e *testEnv) exec(args ...string) int {
	e.out.Reset()
	e.errOut.Reset()
	full := append([]string{"--config", e.cfgPath, "--log-file", filepath.Join(e.dir, "gpureset.log")}, args...)
	return e.app.Execute(context.Background(), full)
}

func (e *testEnv) writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.cfgPath, []byte(content), 0600))
}

func outputLines(s string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefaultsAgreeWithStrategyRegistry(t *testing.T) {
	assert.Equal(t, gpu.DefaultOrder(), config.DefaultOrder)
	assert.Equal(t, gpu.DefaultHardwareID, config.DefaultHardwareID)
}

func TestSettings_EmptyListsUsePlatformDefaults(t *testing.T) {
	s, err := settings(config.Default())
	require.NoError(t, err)
	assert.Equal(t, gpu.DefaultRuntimeLibraries(), s.RuntimeLibraries)
	assert.Equal(t, gpu.DefaultDriverLibraries(), s.DriverLibraries)
	assert.Equal(t, gpu.DefaultOrder(), s.Order)
}

func TestSettings_UnknownStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.Reset.Order = []string{"runtime", "reboot"}
	_, err := settings(cfg)
	assert.ErrorIs(t, err, gpu.ErrUnknownStrategy)
}

func TestBuildRunner_ProbesOnceAcrossRebuilds(t *testing.T) {
	e := newTestEnv(t)
	probes := 0
	inner := e.app.Deps
	e.app.Deps = func(s gpu.Settings, logger *zap.Logger) gpu.Deps {
		d := inner(s, logger)
		d.Capabilities = capability.New(map[capability.Name]capability.Probe{
			capability.Keyboard: func() error { probes++; return nil },
		})
		return d
	}

	_, first, err := e.app.buildRunner(config.Default(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, probes, "probes run while building, before any Run")

	_, second, err := e.app.buildRunner(config.Default(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, probes)
	assert.Same(t, first.Capabilities, second.Capabilities)
}

// =============================================================================
// RUN
// =============================================================================

func TestRun_RequiresYesWithoutTerminal(t *testing.T) {
	e := newTestEnv(t)
	code := e.exec("run")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, e.errOut.String(), "--yes")
	assert.Empty(t, e.out.String())
}

func TestRun_RequiresYesInJSONMode(t *testing.T) {
	e := newTestEnv(t)
	e.app.Interactive = func() bool { return true }
	code := e.exec("run", "--json")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, e.errOut.String(), ErrConfirmationRequired.Error())
}

func TestRun_PromptDeclined(t *testing.T) {
	e := newTestEnv(t)
	e.app.Interactive = func() bool { return true }
	var asked string
	e.app.Confirm = func(prompt string) (bool, error) {
		asked = prompt
		return false, nil
	}

	code := e.exec("run")
	assert.Equal(t, ExitSuccess, code)
	assert.NotEmpty(t, asked)
	assert.Equal(t, "Cancelled.\n", e.out.String())
}

func TestRun_ConfirmDisabledInConfig(t *testing.T) {
	e := newTestEnv(t)
	e.writeConfig(t, "[ui]\nconfirm_run = false\n")
	code := e.exec("run")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, e.out.String(), reset.SummaryLine)
}

func TestRun_OneSuccessExitsZero(t *testing.T) {
	e := newTestEnv(t)
	code := e.exec("--no-color", "run", "--yes")
	require.Equal(t, ExitSuccess, code, e.errOut.String())

	lines := outputLines(e.out.String())
	require.Len(t, lines, 13)
	assert.Equal(t, "Starting CUDA Runtime Reset...", lines[0])
	assert.Equal(t, "CUDA Runtime Reset failed: reset failed on all tried libraries", lines[1])
	assert.Equal(t, "Win Key Driver Reset succeeded.", lines[9])
	assert.Equal(t, "DevCon GPU Toggle succeeded.", lines[11])
	assert.Equal(t, reset.SummaryLine, lines[12])
}

func TestRun_AllFailedExitsOne(t *testing.T) {
	e := newTestEnv(t)
	e.app.Deps = func(s gpu.Settings, l *zap.Logger) gpu.Deps {
		d := fakeDeps(1)(s, l)
		d.Capabilities = capability.Static(map[capability.Name]bool{})
		return d
	}

	code := e.exec("--no-color", "run", "--yes")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, e.out.String(), "DevCon GPU Toggle failed: devcon disable exited with status 1")
	assert.Contains(t, e.errOut.String(), "No strategy succeeded.")
	assert.NotContains(t, e.errOut.String(), "Error:")
}

func TestRun_JSONEvents(t *testing.T) {
	e := newTestEnv(t)
	code := e.exec("run", "--yes", "--json")
	require.Equal(t, ExitSuccess, code, e.errOut.String())

	lines := outputLines(e.out.String())
	require.Len(t, lines, 13)

	var types []string
	for _, line := range lines {
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		types = append(types, ev["type"].(string))
	}
	assert.Equal(t, "started", types[0])
	assert.Equal(t, "failed", types[1])
	assert.Equal(t, "finished", types[12])
}

func TestRun_LogFileWritten(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitSuccess, e.exec("run", "--yes"))

	data, err := os.ReadFile(filepath.Join(e.dir, "gpureset.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id"`)
}

func TestRun_InvalidLogLevelFlag(t *testing.T) {
	e := newTestEnv(t)
	code := e.exec("--log-level", "chatty", "run", "--yes")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, e.errOut.String(), "chatty")
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistory_DisabledByDefault(t *testing.T) {
	e := newTestEnv(t)
	code := e.exec("history")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, e.errOut.String(), "history is disabled")
}

func TestHistory_RecordsRuns(t *testing.T) {
	e := newTestEnv(t)
	e.writeConfig(t, "[history]\nenabled = true\npath = '"+filepath.Join(e.dir, "history.db")+"'\n")

	require.Equal(t, ExitSuccess, e.exec("run", "--yes"))
	require.Equal(t, ExitSuccess, e.exec("history", "--json"), e.errOut.String())

	var runs []struct {
		ID        string `json:"id"`
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, 4, runs[0].Failed)

	require.Equal(t, ExitSuccess, e.exec("history", "show", runs[0].ID))
	lines := outputLines(e.out.String())
	require.Len(t, lines, 7)
	assert.Equal(t, "1. CUDA Runtime Reset: failed [dependency-absent] reset failed on all tried libraries", lines[1])
	assert.Equal(t, "6. DevCon GPU Toggle: succeeded", lines[6])

	assert.Equal(t, ExitFailure, e.exec("history", "show", "no-such-run"))

	reports := filepath.Join(e.dir, "reports")
	require.Equal(t, ExitSuccess, e.exec("history", "export", runs[0].ID, "--dir", reports), e.errOut.String())
	matches, err := filepath.Glob(filepath.Join(reports, "gpureset_run_*.md"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	assert.Equal(t, ExitFailure, e.exec("history", "export", runs[0].ID, "--format", "pdf"))
}

// =============================================================================
// STRATEGIES AND DOCTOR
// =============================================================================

func TestStrategies_FollowConfiguredOrder(t *testing.T) {
	e := newTestEnv(t)
	e.writeConfig(t, "[reset]\norder = [\"devcon\", \"nvml\"]\n")

	require.Equal(t, ExitSuccess, e.exec("strategies"))
	lines := outputLines(e.out.String())
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "1. DevCon GPU Toggle"))
	assert.Contains(t, lines[0], "checked at run time")
	assert.True(t, strings.HasPrefix(lines[1], "2. NVML GPU Reset"))
	assert.Contains(t, lines[1], "unavailable: disabled")
}

func TestStrategies_JSON(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitSuccess, e.exec("strategies", "--json"))

	var infos []StrategyInfo
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &infos))
	require.Len(t, infos, 6)
	assert.Equal(t, gpu.IDRuntime, infos[0].ID)
	assert.Nil(t, infos[0].Available)
	require.NotNil(t, infos[4].Available)
	assert.True(t, *infos[4].Available)
}

func TestDoctor_PlainReport(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitSuccess, e.exec("doctor", "--plain"), e.errOut.String())

	out := e.out.String()
	assert.Contains(t, out, "| nvml | missing | disabled |")
	assert.Contains(t, out, "| keyboard | available |  |")
	assert.Contains(t, out, "NVIDIA GeForce GTX 1060 6GB")
	assert.Contains(t, out, "Suggested hardware ID: `PCI\\VEN_10DE&DEV_1C03&SUBSYS_07981028`")
	assert.Contains(t, out, "does not match")
	assert.Contains(t, out, "not created")
}

func TestDoctor_GPUNotDetected(t *testing.T) {
	e := newTestEnv(t)
	e.app.Detect = func(context.Context) ([]detect.GpuInfo, error) {
		return nil, detect.ErrNoNvidiaSmi
	}
	require.Equal(t, ExitSuccess, e.exec("doctor", "--plain"))
	assert.Contains(t, e.out.String(), "Not detected: nvidia-smi not available")
}

func TestDoctor_Rendered(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitSuccess, e.exec("doctor"), e.errOut.String())
	assert.Contains(t, e.out.String(), "gpureset doctor")
}

func TestHardwareIDMatches(t *testing.T) {
	detected := `PCI\VEN_10DE&DEV_1C03&SUBSYS_07981028`
	tests := []struct {
		configured string
		want       bool
	}{
		{detected, true},
		{`pci\ven_10de&dev_1c03&subsys_07981028`, true},
		{`PCI\VEN_10DE&DEV_1C03`, true},
		{`PCI\VEN_10DE&DEV_1C0`, false},
		{`PCI\VEN_10DE&DEV_1C8C&SUBSYS_07981028`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hardwareIDMatches(tt.configured, detected), tt.configured)
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfig_InitGetSet(t *testing.T) {
	e := newTestEnv(t)

	require.Equal(t, ExitSuccess, e.exec("config", "init"))
	assert.FileExists(t, e.cfgPath)
	assert.Equal(t, ExitFailure, e.exec("config", "init"), "init must not overwrite")
	assert.Contains(t, e.errOut.String(), "already exists")
	require.Equal(t, ExitSuccess, e.exec("config", "init", "--force"))

	require.Equal(t, ExitSuccess, e.exec("config", "set", "reset.order", "nvml,devcon"))
	require.Equal(t, ExitSuccess, e.exec("config", "get", "reset.order"))
	assert.Equal(t, "nvml,devcon\n", e.out.String())

	assert.Equal(t, ExitFailure, e.exec("config", "set", "reset.order", "nvml,reboot"))
	require.Equal(t, ExitSuccess, e.exec("config", "get", "reset.order"))
	assert.Equal(t, "nvml,devcon\n", e.out.String(), "rejected value must not be saved")

	require.Equal(t, ExitSuccess, e.exec("config", "path"))
	assert.Equal(t, e.cfgPath+"\n", e.out.String())
}

func TestConfig_SetDoesNotPersistEnvironment(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitSuccess, e.exec("config", "init"))
	t.Setenv("GPURESET_DEVCON", "pnputil")

	require.Equal(t, ExitSuccess, e.exec("config", "set", "history.enabled", "true"))
	raw, err := config.ReadFile(e.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "devcon", raw.Devcon.Tool)
	assert.True(t, raw.History.Enabled)
}

func TestConfig_ShowJSON(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitSuccess, e.exec("config", "show", "--json"))
	var cfg config.Config
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &cfg))
	assert.Equal(t, config.DefaultOrder, cfg.Reset.Order)
}

// =============================================================================
// TUI AND VERSION
// =============================================================================

func TestTUI_RequiresTerminal(t *testing.T) {
	e := newTestEnv(t)
	assert.Equal(t, ExitFailure, e.exec())
	assert.Contains(t, e.errOut.String(), "needs a terminal")
}

func TestTUI_StartsShell(t *testing.T) {
	e := newTestEnv(t)
	e.app.Interactive = func() bool { return true }
	var started tea.Model
	e.app.RunProgram = func(m tea.Model) error {
		started = m
		return nil
	}

	require.Equal(t, ExitSuccess, e.exec("tui"), e.errOut.String())
	m, ok := started.(shell.Model)
	require.True(t, ok)
	assert.True(t, m.ButtonEnabled())
}

func TestTUI_ProgramErrorIsReported(t *testing.T) {
	e := newTestEnv(t)
	e.app.Interactive = func() bool { return true }
	e.app.RunProgram = func(tea.Model) error { return errors.New("terminal lost") }

	assert.Equal(t, ExitFailure, e.exec())
	assert.Contains(t, e.errOut.String(), "terminal lost")
}

func TestVersion_JSON(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, ExitSuccess, e.exec("version", "--json"))
	var info VersionInfo
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestIsYes(t *testing.T) {
	for _, s := range []string{"y", "Y", "yes", " YES "} {
		assert.True(t, isYes(s), s)
	}
	for _, s := range []string{"", "n", "no", "yep"} {
		assert.False(t, isYes(s), s)
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitFailure, exitCode(errors.New("x")))
	assert.Equal(t, 3, exitCode(&ExitError{Code: 3}))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/config"
	"github.com/jeranaias/gpureset/internal/detect"
	"github.com/jeranaias/gpureset/internal/gpu"
	"github.com/jeranaias/gpureset/internal/reset"
	"github.com/jeranaias/gpureset/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APP
// =============================================================================

// App carries the I/O and backends shared by every command.
// Tests replace the function fields with fakes.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Interactive reports whether prompts can be shown.
	Interactive func() bool
	// Confirm asks a yes/no question.
	Confirm func(prompt string) (bool, error)
	// Deps wires the strategy backends for the given settings.
	Deps func(gpu.Settings, *zap.Logger) gpu.Deps
	// Detect lists installed GPUs.
	Detect func(ctx context.Context) ([]detect.GpuInfo, error)
	// RunProgram runs the interactive shell.
	RunProgram func(tea.Model) error

	flags globalFlags

	capsMu sync.Mutex
	caps   *capability.Set
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
	noColor    bool
}

// NewApp returns an App wired to the real terminal and system backends.
func NewApp() *App {
	return &App{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Interactive: IsTTY,
		Confirm:     promptConfirm,
		Deps:        gpu.SystemDeps,
		Detect:      detect.DetectGPUsCached,
		RunProgram: func(m tea.Model) error {
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}

// =============================================================================
// CONFIG AND LOGGING
// =============================================================================

// configPath returns the --config flag or the default path.
func (a *App) configPath() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}
	return config.Path()
}

// loadConfig reads the config file and applies the global flags.
func (a *App) loadConfig() (*config.Config, error) {
	path, err := a.configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if err := a.applyFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overlays the global flags on cfg.
func (a *App) applyFlags(cfg *config.Config) error {
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if a.flags.logFile != "" {
		cfg.Log.File = a.flags.logFile
	}
	if a.flags.noColor {
		cfg.UI.NoColor = true
	}
	return cfg.Validate()
}

// logger opens the log file. On failure it warns and returns a no-op
// logger so the command can still run.
func (a *App) logger(cfg *config.Config) (*zap.Logger, func()) {
	logger, closeFn, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(a.Err, "warning: logging disabled: %v\n", err)
		return zap.NewNop(), func() {}
	}
	return logger, closeFn
}

// =============================================================================
// RUNNER ASSEMBLY
// =============================================================================

// settings maps the config to strategy settings.
func settings(cfg *config.Config) (gpu.Settings, error) {
	s := gpu.Settings{
		Order:            append([]string(nil), cfg.Reset.Order...),
		RuntimeLibraries: cfg.Runtime.Libraries,
		DriverLibraries:  cfg.Driver.Libraries,
		DevconTool:       cfg.Devcon.Tool,
		HardwareID:       cfg.Devcon.HardwareID,
	}
	if len(s.Order) == 0 {
		s.Order = gpu.DefaultOrder()
	}
	if len(s.RuntimeLibraries) == 0 {
		s.RuntimeLibraries = gpu.DefaultRuntimeLibraries()
	}
	if len(s.DriverLibraries) == 0 {
		s.DriverLibraries = gpu.DefaultDriverLibraries()
	}
	if err := gpu.ValidateOrder(s.Order); err != nil {
		return gpu.Settings{}, fmt.Errorf("invalid [reset] order: %w", err)
	}
	return s, nil
}

// deps wires backends for s. Capabilities are probed by the first call and
// that Set is shared by every later call, including config reloads.
func (a *App) deps(s gpu.Settings, logger *zap.Logger) gpu.Deps {
	d := a.Deps(s, logger)

	a.capsMu.Lock()
	defer a.capsMu.Unlock()
	if a.caps == nil {
		d.Capabilities.Detect()
		a.caps = d.Capabilities
	}
	d.Capabilities = a.caps
	return d
}

// buildRunner assembles a Runner for cfg.
func (a *App) buildRunner(cfg *config.Config, logger *zap.Logger) (*reset.Runner, gpu.Deps, error) {
	s, err := settings(cfg)
	if err != nil {
		return nil, gpu.Deps{}, err
	}
	deps := a.deps(s, logger)
	strategies, err := gpu.Build(s, deps)
	if err != nil {
		return nil, gpu.Deps{}, err
	}
	return reset.New(strategies, reset.WithLogger(logger)), deps, nil
}

// =============================================================================
// HISTORY
// =============================================================================

// errHistoryDisabled is returned when history is off and no database exists.
var errHistoryDisabled = errors.New("history is disabled; set [history] enabled = true in the config file")

// openHistory opens the run store when history is enabled. It returns
// nil without error when history is disabled.
func openHistory(ctx context.Context, cfg *config.Config) (*storage.RunStore, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, path)
}

// recordRun saves run; failures are logged and never fail the command.
func recordRun(ctx context.Context, store *storage.RunStore, run *reset.Run, logger *zap.Logger) {
	if store == nil || run == nil {
		return
	}
	if err := store.Save(ctx, run); err != nil {
		logger.Warn("failed to record run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// printJSON writes v as indented JSON.
func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/config"
	"github.com/jeranaias/gpureset/internal/detect"
	"github.com/jeranaias/gpureset/internal/reset"
	"github.com/jeranaias/gpureset/internal/ui/shell"
	"github.com/jeranaias/gpureset/internal/ui/styles"
)

// configDebounce groups the bursts of writes editors make on save.
const configDebounce = 250 * time.Millisecond

// errNoGPU is returned when detection succeeds but lists no GPU.
var errNoGPU = errors.New("no NVIDIA GPU found")

// errNoTerminal is returned when the shell is started without a terminal.
var errNoTerminal = errors.New("the interactive screen needs a terminal; use 'gpureset run --yes' instead")

func (a *App) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive reset screen (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
}

func (a *App) runTUI(ctx context.Context) error {
	if !a.Interactive() {
		return errNoTerminal
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := a.logger(cfg)
	defer closeLog()

	runner, _, err := a.buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	store, err := openHistory(ctx, cfg)
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	opts := shell.Options{
		Runner: runner,
		Rebuild: func(next *config.Config) (*reset.Runner, error) {
			if err := a.applyFlags(next); err != nil {
				return nil, err
			}
			r, _, err := a.buildRunner(next, logger)
			return r, err
		},
		OnFinished: func(run *reset.Run) {
			recordRun(ctx, store, run, logger)
		},
		Theme:   shellTheme(cfg.UI.NoColor),
		Logger:  logger,
		Context: ctx,
	}

	if path, err := a.configPath(); err == nil {
		watcher, err := config.NewWatcher(path, configDebounce)
		if err != nil {
			logger.Warn("config reload disabled", zap.String("path", path), zap.Error(err))
		} else {
			defer watcher.Close()
			opts.ConfigUpdates = watcher.Updates()
		}
	}

	if cfg.UI.ShowGPU && a.Detect != nil {
		opts.DetectGPU = func(ctx context.Context) (string, error) {
			gpus, err := a.Detect(ctx)
			if err != nil {
				return "", err
			}
			g, ok := detect.Primary(gpus)
			if !ok {
				return "", errNoGPU
			}
			return g.String(), nil
		}
	}

	logger.Info("shell started", zap.Int("strategies", len(runner.Strategies())))
	return a.RunProgram(shell.New(opts))
}

func shellTheme(noColor bool) *styles.Theme {
	if noColor {
		return styles.NewThemeWithProfile(termenv.Ascii, true)
	}
	return styles.NewTheme()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/jeranaias/gpureset/internal/reset"
)

// Log line colors match the interactive screen.
const (
	colorSucceeded = "#00CC00"
	colorFailed    = "#FF5555"
)

func (a *App) runCommand() *cobra.Command {
	var (
		yes      bool
		jsonMode bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every reset strategy once",
		Long: `Run every configured reset strategy once, in order, and print one line
per notification. The exit status is 0 if at least one strategy succeeded
and 1 if all of them failed.`,
		Example: `  gpureset run
  gpureset run --yes
  gpureset run --yes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runOnce(cmd, yes, jsonMode)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print notifications as JSON lines")
	return cmd
}

func (a *App) runOnce(cmd *cobra.Command, yes, jsonMode bool) error {
	ctx := cmd.Context()
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ok, err := a.confirmRun(yes, jsonMode, cfg.UI.ConfirmRun)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.Out, "Cancelled.")
		return nil
	}

	logger, closeLog := a.logger(cfg)
	defer closeLog()

	runner, _, err := a.buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	var sink reset.Sink
	if jsonMode {
		sink = jsonSink(a.Out)
	} else {
		sink = lineSink(a.Out, colorProfile(a.Out, cfg.UI.NoColor))
	}

	run, err := runner.Run(ctx, sink)
	if err != nil {
		return err
	}

	store, err := openHistory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(a.Err, "warning: history unavailable: %v\n", err)
	}
	if store != nil {
		recordRun(ctx, store, run, logger)
		store.Close()
	}

	if run.Succeeded() == 0 {
		if !jsonMode {
			fmt.Fprintln(a.Err, "No strategy succeeded.")
		}
		return &ExitError{Code: ExitFailure}
	}
	return nil
}

// jsonSink writes one JSON object per event.
func jsonSink(w io.Writer) reset.Sink {
	enc := json.NewEncoder(w)
	return reset.SinkFunc(func(ev reset.Event) {
		_ = enc.Encode(ev)
	})
}

// lineSink writes each event's line, colored by outcome.
func lineSink(w io.Writer, profile termenv.Profile) reset.Sink {
	out := termenv.NewOutput(w, termenv.WithProfile(profile))
	return reset.SinkFunc(func(ev reset.Event) {
		s := out.String(ev.Line())
		switch ev.Type {
		case reset.EventSucceeded:
			s = s.Foreground(out.Color(colorSucceeded))
		case reset.EventFailed:
			s = s.Foreground(out.Color(colorFailed))
		case reset.EventFinished:
			s = s.Bold()
		}
		fmt.Fprintln(w, s.String())
	})
}

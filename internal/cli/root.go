// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := NewApp()
	return app.Execute(ctx, os.Args[1:])
}

// Execute runs args against the command tree and returns the exit code.
// Errors other than ExitError are printed to a.Err.
func (a *App) Execute(ctx context.Context, args []string) int {
	root := a.Command()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	var ee *ExitError
	if err != nil && !errors.As(err, &ee) {
		fmt.Fprintf(a.Err, "Error: %v\n", err)
	}
	return exitCode(err)
}

// Command builds the cobra command tree.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "gpureset",
		Short: "Try every known way to reset an NVIDIA GPU",
		Long: `gpureset runs a fixed sequence of GPU reset strategies, from CUDA
runtime and driver calls to NVML, a driver-restart hotkey and a device
disable/enable cycle. Each strategy is tried regardless of the others and
every attempt is logged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.gpureset/config.toml, or $GPURESET_CONFIG)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFile, "log-file", "", "log file (default ~/.gpureset/gpureset.log)")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		a.tuiCommand(),
		a.runCommand(),
		a.strategiesCommand(),
		a.doctorCommand(),
		a.historyCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return root
}

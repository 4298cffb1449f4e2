// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gpu

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// DEVICE TOGGLE
// =============================================================================

// CommandResult is the outcome of one external command.
type CommandResult struct {
	// Code is the exit status; 1 when the process could not start.
	Code int
	// Output is combined stdout and stderr.
	Output string
	// Err is the error from starting or waiting on the process.
	Err error
}

// CommandRunner runs an external tool to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) CommandResult
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and captures its combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) CommandResult {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()

	code := 0
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		} else {
			code = 1
		}
	}
	return CommandResult{Code: code, Output: buf.String(), Err: err}
}

// DeviceToggle disables and then re-enables the GPU with the device-control
// tool. Enable is never attempted after a failed disable. Both steps ignore
// cancellation of ctx so an interrupt cannot leave the device disabled.
func DeviceToggle(runner CommandRunner, tool, hardwareID string, log *zap.Logger) reset.Operation {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context) (string, error) {
		if runner == nil {
			return "", reset.Missing(tool)
		}
		ctx = context.WithoutCancel(ctx)
		for _, step := range []string{"disable", "enable"} {
			res := runner.Run(ctx, tool, step, hardwareID)
			log.Debug("device-control step",
				zap.String("step", step),
				zap.Int("code", res.Code),
				zap.String("output", strings.TrimSpace(res.Output)))

			var ee *exec.ExitError
			switch {
			case res.Err != nil && !errors.As(res.Err, &ee):
				return "", reset.ProcessFailed("%s %s: %w", tool, step, res.Err)
			case res.Code != 0:
				return "", reset.ProcessFailed("%s %s exited with status %d", tool, step, res.Code)
			}
		}
		return "", nil
	}
}

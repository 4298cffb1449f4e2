// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// ErrConfirmationRequired is returned when a prompt is needed but cannot be shown.
var ErrConfirmationRequired = errors.New("confirmation required: pass --yes to run without a prompt")

// confirmRun decides whether a run may start.
//
// Confirmation flow:
//  1. --yes, or confirm_run disabled in config: proceed
//  2. --json mode: error (no interactive prompts in JSON mode)
//  3. stdin is not a TTY: error (can't prompt)
//  4. otherwise prompt and wait for the answer
func (a *App) confirmRun(yes, jsonMode, required bool) (bool, error) {
	if yes || !required {
		return true, nil
	}
	if jsonMode || !a.Interactive() {
		return false, ErrConfirmationRequired
	}
	return a.Confirm("Reset the GPU now? [y/N] ")
}

// promptConfirm shows a line-edited prompt. Ctrl+C and EOF answer no.
func promptConfirm(prompt string) (bool, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	answer, err := line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return isYes(answer), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

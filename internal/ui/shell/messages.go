// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gpureset/internal/config"
	"github.com/jeranaias/gpureset/internal/reset"
)

// =============================================================================
// MESSAGES
// =============================================================================

// EventMsg carries one notification from the running Run.
type EventMsg struct {
	Event reset.Event
}

// streamClosedMsg is sent once the notification channel has been closed.
type streamClosedMsg struct{}

// RunFinishedMsg carries the completed Run.
type RunFinishedMsg struct {
	Run *reset.Run
}

// ConfigReloadedMsg carries a config reload result.
type ConfigReloadedMsg struct {
	Update config.Update
}

// GPUDetectedMsg carries the header label for the detected GPU.
type GPUDetectedMsg struct {
	Label string
	Err   error
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForEvent reads the next notification, or reports the channel closed.
func waitForEvent(events <-chan reset.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// waitForRun reads the completed Run after the stream has closed.
func waitForRun(done <-chan *reset.Run) tea.Cmd {
	return func() tea.Msg {
		return RunFinishedMsg{Run: <-done}
	}
}

// waitForConfig reads the next config reload.
func waitForConfig(updates <-chan config.Update) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return nil
		}
		return ConfigReloadedMsg{Update: u}
	}
}

// notifyFinished hands a completed Run to fn outside Update.
func notifyFinished(fn func(*reset.Run), run *reset.Run) tea.Cmd {
	return func() tea.Msg {
		fn(run)
		return nil
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gpureset/internal/util"
)

const title = "GPU Reset Utility"

// View renders the screen.
func (m Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderButton(),
		m.theme.LogBox.Render(m.viewport.View()),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	text := m.theme.HeaderTitle.Render(title)
	if m.gpu != "" {
		avail := m.width - util.StringWidth(title) - 5
		text += "  " + m.theme.HeaderGPU.Render(util.TruncateWidth(m.gpu, avail))
	}
	return m.theme.Header.Width(m.width).Render(text)
}

func (m Model) renderButton() string {
	label := "Reset GPU"
	style := m.theme.Button
	if !m.ButtonEnabled() {
		label = "Resetting..."
		style = m.theme.ButtonDisabled
	}
	return "\n" + style.Render(label) + "\n"
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.state == StateRunning:
		left = m.spinner.View() + " Running reset strategies"
	default:
		left = "Ready"
	}
	if m.notice != "" {
		left += "  " + m.theme.Warning.Render(m.notice)
	}

	hints := make([]string, 0, 3)
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, m.theme.Shortcut(h.Key, h.Desc))
	}
	right := strings.Join(hints, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

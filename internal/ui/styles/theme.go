// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the reset shell.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	renderer *lipgloss.Renderer

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderGPU   lipgloss.Style

	// ==========================================================================
	// BUTTON STYLES
	// ==========================================================================

	Button         lipgloss.Style
	ButtonDisabled lipgloss.Style

	// ==========================================================================
	// LOG STYLES
	// ==========================================================================

	LogBox       lipgloss.Style
	LogStarted   lipgloss.Style
	LogSucceeded lipgloss.Style
	LogFailed    lipgloss.Style
	LogSummary   lipgloss.Style
	LogPlain     lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	Spinner      lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Warning      lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	return NewThemeWithProfile(termenv.ColorProfile(), termenv.HasDarkBackground())
}

// NewThemeWithProfile creates a theme for an explicit color profile.
// termenv.Ascii yields a colorless theme.
func NewThemeWithProfile(profile termenv.Profile, isDark bool) *Theme {
	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
		renderer:     lipgloss.NewRenderer(io.Discard),
	}
	t.renderer.SetColorProfile(profile)
	t.renderer.SetHasDarkBackground(isDark)
	t.initStyles()
	return t
}

func (t *Theme) style() lipgloss.Style {
	return t.renderer.NewStyle()
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.Header = t.style().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = t.style().
		Bold(true).
		Foreground(Cyan)

	t.HeaderGPU = t.style().
		Foreground(TextSecondary).
		Italic(true)

	t.Button = t.style().
		Bold(true).
		Foreground(TextInverse).
		Background(EmeraldDeep).
		Padding(0, 3)

	t.ButtonDisabled = t.style().
		Foreground(TextMuted).
		Background(Overlay).
		Padding(0, 3)

	t.LogBox = t.style().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	t.LogStarted = t.style().Foreground(Amber)
	t.LogSucceeded = t.style().Foreground(Emerald)
	t.LogFailed = t.style().Foreground(Rose)
	t.LogSummary = t.style().Bold(true).Foreground(Cyan)
	t.LogPlain = t.style().Foreground(TextPrimary)

	t.StatusBar = t.style().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.Spinner = t.style().Foreground(Purple)

	t.ShortcutKey = t.style().
		Bold(true).
		Foreground(Cyan)

	t.ShortcutDesc = t.style().Foreground(TextMuted)

	t.Warning = t.style().
		Bold(true).
		Foreground(Amber)
}

// LogLine styles one notification line by its shape.
func (t *Theme) LogLine(line string) string {
	switch {
	case strings.HasPrefix(line, "Starting "):
		return t.LogStarted.Render(line)
	case strings.Contains(line, " failed: "):
		return t.LogFailed.Render(line)
	case strings.Contains(line, " succeeded"):
		return t.LogSucceeded.Render(line)
	case strings.HasPrefix(line, "All strategies attempted") || strings.HasPrefix(line, "Reset process finished"):
		return t.LogSummary.Render(line)
	default:
		return t.LogPlain.Render(line)
	}
}

// Shortcut renders a "key desc" hint.
func (t *Theme) Shortcut(key, desc string) string {
	return t.ShortcutKey.Render(key) + " " + t.ShortcutDesc.Render(desc)
}

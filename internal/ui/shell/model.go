// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/config"
	"github.com/jeranaias/gpureset/internal/reset"
	"github.com/jeranaias/gpureset/internal/ui/styles"
	"github.com/jeranaias/gpureset/internal/util"
)

// FinishedLine is appended to the log when a Run's stream closes.
const FinishedLine = "Reset process finished."

// busyNotice is shown when quit is requested during a Run.
const busyNotice = "reset in progress"

// =============================================================================
// STATE
// =============================================================================

// State is the shell lifecycle state.
type State int

const (
	StateIdle    State = iota // Button enabled
	StateRunning              // Run in progress, button disabled
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configure a shell Model.
type Options struct {
	// Runner executes Runs. Required.
	Runner *reset.Runner
	// Rebuild creates a Runner from a reloaded config.
	Rebuild func(*config.Config) (*reset.Runner, error)
	// ConfigUpdates delivers config reloads.
	ConfigUpdates <-chan config.Update
	// OnFinished is called with every completed Run, from a command rather
	// than inside Update.
	OnFinished func(*reset.Run)
	// DetectGPU returns the header label for the GPU.
	DetectGPU func(ctx context.Context) (string, error)
	// Theme styles the screen. Nil means styles.NewTheme().
	Theme *styles.Theme
	// Logger receives shell diagnostics.
	Logger *zap.Logger
	// Context is passed to every Run.
	Context context.Context
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the reset screen.
type Model struct {
	opts   Options
	runner *reset.Runner
	theme  *styles.Theme
	keys   KeyMap
	log    *zap.Logger

	state   State
	lines   []string
	gpu     string
	notice  string
	pending *config.Config

	events <-chan reset.Event
	done   <-chan *reset.Run

	spinner  spinner.Model
	viewport viewport.Model

	width  int
	height int
}

// New creates the reset screen.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		opts:     opts,
		runner:   opts.Runner,
		theme:    theme,
		keys:     DefaultKeyMap(),
		log:      logger,
		spinner:  sp,
		viewport: viewport.New(80, 16),
		width:    80,
		height:   24,
	}
	return m
}

// State returns the lifecycle state.
func (m Model) State() State { return m.state }

// Lines returns the log lines of the current or last Run.
func (m Model) Lines() []string { return append([]string(nil), m.lines...) }

// ButtonEnabled reports whether the Reset button accepts presses.
func (m Model) ButtonEnabled() bool { return m.state == StateIdle }

// Init starts GPU detection and the config reload listener.
func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.opts.DetectGPU != nil {
		detect := m.opts.DetectGPU
		ctx := m.opts.Context
		cmds = append(cmds, func() tea.Msg {
			label, err := detect(ctx)
			return GPUDetectedMsg{Label: label, Err: err}
		})
	}
	if cmd := waitForConfig(m.opts.ConfigUpdates); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m.appendLine(msg.Event.Line())
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		return m, waitForRun(m.done)

	case RunFinishedMsg:
		return m.handleFinished(msg)

	case ConfigReloadedMsg:
		return m.handleReload(msg)

	case GPUDetectedMsg:
		if msg.Err != nil {
			m.log.Debug("GPU detection failed", zap.Error(msg.Err))
			m.gpu = "GPU not detected"
		} else {
			m.gpu = msg.Label
		}
		return m, nil

	case spinner.TickMsg:
		if m.state != StateRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Quit):
		if m.state == StateRunning {
			m.notice = busyNotice
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Reset):
		if m.state == StateRunning {
			return m, nil
		}
		return m.startRun()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) startRun() (tea.Model, tea.Cmd) {
	m.notice = ""
	if m.pending != nil {
		m.applyConfig(m.pending)
		m.pending = nil
	}
	if m.runner == nil {
		m.notice = "no reset strategies configured"
		return m, nil
	}

	events, done, err := m.runner.Start(m.opts.Context)
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}

	m.state = StateRunning
	m.events = events
	m.done = done
	m.lines = nil
	m.refreshViewport()
	return m, tea.Batch(m.spinner.Tick, waitForEvent(events))
}

func (m Model) handleFinished(msg RunFinishedMsg) (tea.Model, tea.Cmd) {
	m.state = StateIdle
	m.events = nil
	m.done = nil
	m.notice = ""
	m.appendLine(FinishedLine)

	if msg.Run != nil && m.opts.OnFinished != nil {
		return m, notifyFinished(m.opts.OnFinished, msg.Run)
	}
	return m, nil
}

func (m Model) handleReload(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	next := waitForConfig(m.opts.ConfigUpdates)
	if msg.Update.Err != nil {
		m.log.Warn("config reload failed", zap.Error(msg.Update.Err))
		m.notice = "config error: " + util.FirstLine(msg.Update.Err.Error())
		return m, next
	}
	if m.state == StateRunning {
		m.pending = msg.Update.Config
		return m, next
	}
	m.applyConfig(msg.Update.Config)
	return m, next
}

// applyConfig swaps the Runner. Callers guarantee no Run is active.
func (m *Model) applyConfig(cfg *config.Config) {
	if m.opts.Rebuild == nil || cfg == nil {
		return
	}
	runner, err := m.opts.Rebuild(cfg)
	if err != nil {
		m.log.Warn("rebuild after config reload failed", zap.Error(err))
		m.notice = "config error: " + util.FirstLine(err.Error())
		return
	}
	m.runner = runner
	m.notice = "configuration reloaded"
	m.log.Info("runner rebuilt from reloaded config", zap.Int("strategies", len(runner.Strategies())))
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Layout: header (1) + button (3) + log border (2) + status bar (1)
	const chrome = 7
	h := msg.Height - chrome
	if h < 3 {
		h = 3
	}
	w := msg.Width - 4
	if w < 10 {
		w = 10
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.refreshViewport()
	return m, nil
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	rendered := make([]string, len(m.lines))
	for i, line := range m.lines {
		rendered[i] = m.theme.LogLine(line)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

// Package tui provides the BubbleTea-based terminal rendering surface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/scatter/internal/overlay"
)

// frameInterval is the redraw rate while a message is fading.
const frameInterval = 33 * time.Millisecond

// commandTimeout bounds how long a key press waits on the engine.
const commandTimeout = 2 * time.Second

// Controller executes overlay commands and tracks the terminal size.
type Controller interface {
	Execute(ctx context.Context, cmd overlay.Command) error
	SetViewport(ctx context.Context, size overlay.Size) error
}

// Model is the terminal view of a Canvas.
type Model struct {
	canvas *Canvas
	ctrl   Controller
	logger *slog.Logger

	help help.Model
	keys KeyMap

	width     int
	height    int
	ready     bool
	animating bool

	// Status message
	statusMsg string
	statusErr bool
}

// New creates a new TUI model.
func New(canvas *Canvas, ctrl Controller, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		canvas: canvas,
		ctrl:   ctrl,
		logger: logger,
		help:   help.New(),
		keys:   DefaultKeyMap(),
	}
}

type changedMsg struct{}

type frameMsg time.Time

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return m.watchForChanges
}

// watchForChanges waits for the canvas to change.
func (m Model) watchForChanges() tea.Msg {
	<-m.canvas.Changes()
	return changedMsg{}
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		return m, m.resizeViewport()

	case changedMsg:
		cmds := []tea.Cmd{m.watchForChanges}
		if !m.animating && m.canvas.Animating() {
			m.animating = true
			cmds = append(cmds, frame())
		}
		return m, tea.Batch(cmds...)

	case frameMsg:
		if m.canvas.Animating() {
			return m, frame()
		}
		m.animating = false
		return m, nil

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil
	}

	return m, nil
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, m.resizeViewport()
	case key.Matches(msg, m.keys.Clear):
		return m, m.execute(overlay.Clear(), "Cleared")
	case key.Matches(msg, m.keys.ToggleDebug):
		return m, m.execute(overlay.ToggleDebug(), "Toggled outlines")
	case key.Matches(msg, m.keys.ResetStyles):
		return m, m.execute(overlay.ResetStyles(), "Styles reset")
	}
	return m, nil
}

// resizeViewport tells the engine the new drawable area in pixels.
func (m Model) resizeViewport() tea.Cmd {
	rows := m.canvasRows()
	if m.ctrl == nil || m.width <= 0 || rows <= 0 {
		return nil
	}
	ctrl, logger := m.ctrl, m.logger
	size := overlay.Size{Width: m.width * CellWidth, Height: rows * CellHeight}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := ctrl.SetViewport(ctx, size); err != nil {
			logger.Warn("failed to resize viewport", "size", size, "error", err)
			return statusMsg{text: fmt.Sprintf("resize failed: %v", err), isErr: true}
		}
		return nil
	}
}

// execute runs cmd off the update goroutine and reports the result.
func (m Model) execute(cmd overlay.Command, done string) tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl, logger := m.ctrl, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := ctrl.Execute(ctx, cmd); err != nil {
			logger.Warn("overlay command failed", "command", cmd.Name, "error", err)
			return statusMsg{text: fmt.Sprintf("%s failed: %v", cmd.Name, err), isErr: true}
		}
		if done == "" {
			return nil
		}
		return statusMsg{text: done}
	}
}

// canvasRows is the terminal height left after the status line.
func (m Model) canvasRows() int {
	return m.height - lipgloss.Height(m.footer())
}

func (m Model) footer() string {
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		return statusStyle.Render(m.statusMsg)
	}
	return m.help.View(m.keys)
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.canvas.Render(m.width, m.canvasRows()) + "\n" + m.footer()
}

// Run starts the terminal surface and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, canvas *Canvas, ctrl Controller, logger *slog.Logger) error {
	p := tea.NewProgram(New(canvas, ctrl, logger), tea.WithAltScreen(), tea.WithContext(ctx))

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

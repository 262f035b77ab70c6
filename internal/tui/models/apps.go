// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/tui/styles"
)

// App profile menu entries, in display order.
var appMenuItems = []string{
	"Backup & push to GitHub",
	"Pull & restore from GitHub",
	"Check for updates",
	"Back to main menu",
}

type appsPhase int

const (
	appsPhaseMenu appsPhase = iota
	appsPhaseRunning
	appsPhaseStatus
	appsPhaseComplete
)

// Apps manages app profile backup, restore and status.
type Apps struct {
	styles  *styles.Styles
	ctx     context.Context
	tx      chan<- commands.Message
	spinner spinner.Model
	phase   appsPhase
	cursor  int
	initial AppsData
	output  *Output
	title   string
	done    bool
	success bool
	errMsg  string
	width   int
	height  int
}

// NewApps creates the app profile screen.
func NewApps(ctx context.Context, styleConfig *styles.Styles, tx chan<- commands.Message, data any) *Apps {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = styleConfig.PrimaryText

	model := &Apps{
		styles:  styleConfig,
		ctx:     ctx,
		tx:      tx,
		spinner: spin,
		output:  NewOutput(),
	}

	if seed, ok := data.(AppsData); ok {
		model.initial = seed
	}

	return model
}

// Init implements tea.Model.
func (m *Apps) Init() tea.Cmd {
	switch m.initial.Action {
	case AppsBackup:
		return m.startBackup(m.initial.Force)
	case AppsRestore:
		return m.startRestore(m.initial.Force)
	case AppsStatus:
		return m.startStatus()
	default:
		return nil
	}
}

// Idle reports whether the global quit key applies.
func (m *Apps) Idle() bool {
	switch m.phase {
	case appsPhaseMenu, appsPhaseComplete:
		return true
	case appsPhaseStatus:
		return m.done
	default:
		return false
	}
}

func (m *Apps) startBackup(force bool) tea.Cmd {
	m.phase = appsPhaseRunning
	m.title = "App Profile Backup"
	m.output = NewOutput()
	m.done = false

	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		commands.StartAppBackup(m.ctx, m.tx, force)
		return nil
	})
}

func (m *Apps) startRestore(force bool) tea.Cmd {
	m.phase = appsPhaseRunning
	m.title = "App Profile Restore"
	m.output = NewOutput()
	m.done = false

	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		commands.StartAppRestore(m.ctx, m.tx, force)
		return nil
	})
}

func (m *Apps) startStatus() tea.Cmd {
	m.phase = appsPhaseStatus
	m.title = "App Profile Status"
	m.output = NewUnboundedOutput()
	m.done = false

	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		commands.StartAppStatus(m.ctx, m.tx)
		return nil
	})
}

// Update implements tea.Model.
func (m *Apps) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case CommandMsg:
		m.applyCommand(commands.Message(msg))
	}

	return m, nil
}

func (m *Apps) applyCommand(msg commands.Message) {
	switch msg.Kind {
	case commands.Stdout, commands.Stderr:
		m.output.Append(msg.Line)
	case commands.StepFailed:
		if msg.Err != nil {
			m.errMsg = msg.Err.Summary
		}
	case commands.Done:
		m.done = true
		m.success = msg.Success

		if m.phase == appsPhaseRunning {
			m.phase = appsPhaseComplete
		}
	}
}

func (m *Apps) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.phase == appsPhaseMenu {
		return m.handleMenuKey(msg)
	}

	switch msg.String() {
	case "up", "k":
		m.output.ScrollUp(m.statusHeight())
	case "down", "j":
		m.output.ScrollDown(m.statusHeight())
	case KeyEnter, KeyEsc, "backspace":
		if m.phase == appsPhaseComplete || (m.phase == appsPhaseStatus && m.done) {
			m.phase = appsPhaseMenu
			m.done = false
		}
	}

	return m, nil
}

func (m *Apps) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(appMenuItems)-1 {
			m.cursor++
		}
	case KeyEnter, " ":
		switch m.cursor {
		case 0:
			return m, m.startBackup(false)
		case 1:
			return m, m.startRestore(false)
		case 2:
			return m, m.startStatus()
		case 3:
			return m, Navigate(MenuScreen, MenuData{Selected: menuApps})
		}
	case KeyEsc:
		return m, Navigate(MenuScreen, MenuData{Selected: menuApps})
	}

	return m, nil
}

func (m *Apps) statusHeight() int {
	if m.phase == appsPhaseStatus {
		return outputHeight + 6
	}

	return outputHeight
}

// View implements tea.Model.
func (m *Apps) View() string {
	if m.phase == appsPhaseMenu {
		return m.viewMenu()
	}

	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render(m.title))
	builder.WriteString("\n\n")

	if !m.done {
		builder.WriteString("  ")
		builder.WriteString(m.spinner.View())
		builder.WriteString(" Working...")
		builder.WriteString("\n\n")
	}

	builder.WriteString(m.output.View(m.styles, m.width, m.statusHeight()))
	builder.WriteString("\n\n")

	switch {
	case !m.done:
		builder.WriteString(m.styles.Keybinding("↑/↓", "scroll output"))
	case m.phase == appsPhaseComplete && !m.success:
		builder.WriteString(m.styles.ErrorText.Render("Operation failed: " + m.errMsg))
		builder.WriteString("\n")
		builder.WriteString(m.styles.Keybinding("enter", "back"))
	default:
		builder.WriteString(m.styles.Keybinding("enter", "back"))
	}

	return builder.String()
}

func (m *Apps) viewMenu() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("App Profiles"))
	builder.WriteString("\n\n")

	for i, item := range appMenuItems {
		var (
			style  lipgloss.Style
			prefix string
		)

		if i == m.cursor {
			style = m.styles.Selected
			prefix = SelectedPrefix
		} else {
			style = m.styles.Unselected
			prefix = "  "
		}

		builder.WriteString(style.Render(fmt.Sprintf("%s%s", prefix, item)))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(m.styles.Keybinding("↑/↓", "navigate"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("enter", "select"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/tui/styles"
)

// Keys runs the key management operations (setup, backup, restore,
// status) and shows their output.
type Keys struct {
	styles  *styles.Styles
	ctx     context.Context
	tx      chan<- commands.Message
	spinner spinner.Model
	action  KeysAction
	force   bool
	output  *Output
	done    bool
	success bool
	errMsg  string
	width   int
	height  int
}

// NewKeys creates the key management screen.
func NewKeys(ctx context.Context, styleConfig *styles.Styles, tx chan<- commands.Message, data any) *Keys {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = styleConfig.PrimaryText

	model := &Keys{
		styles:  styleConfig,
		ctx:     ctx,
		tx:      tx,
		spinner: spin,
		output:  NewUnboundedOutput(),
	}

	if seed, ok := data.(KeysData); ok {
		model.action = seed.Action
		model.force = seed.Force
	}

	return model
}

// Init implements tea.Model.
func (m *Keys) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		switch m.action {
		case KeysBackup:
			commands.StartKeyBackup(m.ctx, m.tx)
		case KeysRestore:
			commands.StartKeyRestore(m.ctx, m.tx, m.force)
		case KeysStatus:
			commands.StartKeyStatus(m.ctx, m.tx)
		default:
			commands.StartKeySetup(m.ctx, m.tx)
		}

		return nil
	})
}

// Idle reports whether the global quit key applies.
func (m *Keys) Idle() bool {
	return m.done
}

func (m *Keys) title() string {
	switch m.action {
	case KeysBackup:
		return "Key Backup"
	case KeysRestore:
		return "Key Restore"
	case KeysStatus:
		return "Key Status"
	default:
		return "Key Setup"
	}
}

// Update implements tea.Model.
func (m *Keys) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

func (m *Keys) applyCommand(msg commands.Message) {
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
	}
}

func (m *Keys) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.output.ScrollUp(outputHeight)
	case "down", "j":
		m.output.ScrollDown(outputHeight)
	case KeyEnter, KeyEsc:
		if m.done {
			return m, Navigate(MenuScreen, MenuData{Selected: menuApps})
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m *Keys) View() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render(m.title()))
	builder.WriteString("\n\n")

	if !m.done {
		builder.WriteString("  ")
		builder.WriteString(m.spinner.View())
		builder.WriteString(" Working...")
		builder.WriteString("\n\n")
	}

	builder.WriteString(m.output.View(m.styles, m.width, outputHeight))
	builder.WriteString("\n\n")

	switch {
	case !m.done:
		builder.WriteString(m.styles.Keybinding("↑/↓", "scroll output"))
	case m.success:
		builder.WriteString(m.styles.Keybinding("enter", "back to menu"))
	default:
		builder.WriteString(m.styles.ErrorText.Render("Operation failed: " + m.errMsg))
		builder.WriteString("\n")
		builder.WriteString(m.styles.Keybinding("enter", "back to menu"))
	}

	return builder.String()
}

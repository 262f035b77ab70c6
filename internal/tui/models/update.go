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

// outputHeight is the number of command output lines shown below steps.
const outputHeight = 12

// Update runs the system update and shows step progress plus command
// output.
type Update struct {
	styles  *styles.Styles
	ctx     context.Context
	tx      chan<- commands.Message
	spinner spinner.Model
	steps   *StepList
	output  *Output
	done    bool
	success bool
	errMsg  string
	width   int
	height  int
}

// NewUpdate creates the update screen model.
func NewUpdate(ctx context.Context, styleConfig *styles.Styles, tx chan<- commands.Message) *Update {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = styleConfig.PrimaryText

	return &Update{
		styles:  styleConfig,
		ctx:     ctx,
		tx:      tx,
		spinner: spin,
		steps: NewStepList(
			"Pulling configuration updates",
			"Updating flake inputs",
			"Rebuilding system",
			"Comparing packages",
			"Updating Claude Code",
			"Updating Codex CLI",
			"Checking browser profiles",
		),
		output: NewOutput(),
	}
}

// Init implements tea.Model.
func (m *Update) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			commands.StartUpdate(m.ctx, m.tx)
			return nil
		},
	)
}

// Idle reports whether the global quit key applies.
func (m *Update) Idle() bool {
	return m.done
}

// Update implements tea.Model.
func (m *Update) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

func (m *Update) applyCommand(msg commands.Message) {
	switch msg.Kind {
	case commands.Stdout, commands.Stderr:
		m.output.Append(msg.Line)
	case commands.StepComplete, commands.StepSkipped:
		m.steps.Apply(msg)
	case commands.StepFailed:
		m.steps.Apply(msg)

		if msg.Err != nil {
			m.errMsg = msg.Err.Summary
		}
	case commands.Done:
		m.done = true
		m.success = msg.Success
		m.steps.FinishPending()
	}
}

func (m *Update) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.output.ScrollUp(outputHeight)
	case "down", "j":
		m.output.ScrollDown(outputHeight)
	case KeyEnter, KeyEsc:
		if m.done {
			return m, Navigate(MenuScreen, MenuData{Selected: menuUpdate})
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m *Update) View() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("System Update"))
	builder.WriteString("\n\n")
	builder.WriteString(m.steps.View(m.styles, m.spinner.View()))
	builder.WriteString("\n")
	builder.WriteString(m.output.View(m.styles, m.width, outputHeight))
	builder.WriteString("\n\n")

	switch {
	case !m.done:
		builder.WriteString(m.styles.Keybinding("↑/↓", "scroll output"))
	case m.success:
		builder.WriteString(m.styles.SuccessText.Render("Update complete."))
		builder.WriteString("\n")
		builder.WriteString(m.styles.Keybinding("enter", "back to menu"))
	default:
		builder.WriteString(m.styles.ErrorText.Render("Update failed: " + m.errMsg))
		builder.WriteString("\n")
		builder.WriteString(m.styles.Keybinding("enter", "back to menu"))
	}

	return builder.String()
}

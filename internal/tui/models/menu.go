// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nixforge/forge/internal/tui/styles"
)

// Main menu entries, in display order.
var mainMenuItems = []string{
	"Install NixOS (fresh installation)",
	"Update system",
	"App profiles",
	"Exit",
}

// Menu item indices.
const (
	menuInstall = iota
	menuUpdate
	menuApps
	menuExit
)

// Menu is the main menu model.
type Menu struct {
	styles *styles.Styles
	cursor int
	width  int
	height int
}

// NewMenu creates the main menu, optionally restoring the cursor.
func NewMenu(styleConfig *styles.Styles, data any) *Menu {
	menu := &Menu{styles: styleConfig}

	if restore, ok := data.(MenuData); ok {
		if restore.Selected >= 0 && restore.Selected < len(mainMenuItems) {
			menu.cursor = restore.Selected
		}
	}

	return menu
}

// Init implements tea.Model.
func (m *Menu) Init() tea.Cmd {
	return nil
}

// Idle reports that the menu accepts the global quit key.
func (m *Menu) Idle() bool {
	return true
}

// Update implements tea.Model.
func (m *Menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m *Menu) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(mainMenuItems)-1 {
			m.cursor++
		}
	case KeyEnter, " ":
		return m.handleSelection()
	case KeyEsc:
		return m, func() tea.Msg { return ExitRequestMsg{} }
	}

	return m, nil
}

func (m *Menu) handleSelection() (tea.Model, tea.Cmd) {
	switch m.cursor {
	case menuInstall:
		return m, Navigate(InstallScreen, nil)
	case menuUpdate:
		return m, Navigate(UpdateScreen, nil)
	case menuApps:
		return m, Navigate(AppsScreen, AppsData{Action: AppsMenu})
	case menuExit:
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m *Menu) View() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Logo())
	builder.WriteString("\n\n")
	builder.WriteString(m.styles.Subtitle.Render("NixOS installation and maintenance"))
	builder.WriteString("\n\n")

	for i, item := range mainMenuItems {
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
	builder.WriteString(m.styles.Keybinding("q", "quit"))

	content := builder.String()
	if m.width > 0 {
		content = lipgloss.NewStyle().
			Width(m.width).
			Align(lipgloss.Center).
			Render(content)
	}

	return content
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package models implements the per-screen TUI models and the navigation
// messages exchanged between them and the root application.
package models

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nixforge/forge/internal/commands"
)

// Screen constants for navigation.
const (
	MenuScreen = iota
	InstallScreen
	CreateHostScreen
	UpdateScreen
	AppsScreen
	KeysScreen
)

// Key constants for common key inputs.
const (
	KeyCtrlC = "ctrl+c"
	KeyEnter = "enter"
	KeyEsc   = "esc"
)

// UI constants shared across screens.
const (
	SelectedPrefix  = "❯ "
	MaxInputLength  = 100
	GoodbyeMessage  = "Goodbye!\n"
	NewHostMenuItem = "New host configuration"
)

// NavigateMsg requests navigation to a specific screen.
type NavigateMsg struct {
	Screen int
	Data   any // Optional data to pass to the new screen
}

// Navigate builds a command that sends a NavigateMsg.
func Navigate(screen int, data any) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{Screen: screen, Data: data}
	}
}

// ExitRequestMsg asks the root application to show the exit confirmation.
type ExitRequestMsg struct{}

// CommandMsg wraps a progress event from a runner goroutine.
type CommandMsg commands.Message

// MenuData restores the main menu cursor when navigating back.
type MenuData struct {
	Selected int
}

// InstallData seeds the install flow, either from the CLI or from a
// completed create-host wizard.
type InstallData struct {
	Hostname string
	Disk     string
	// FromWizard skips host and disk selection and goes straight to
	// credential entry.
	FromWizard bool
}

// AppsAction selects the initial app-profile operation.
type AppsAction int

// App profile actions.
const (
	AppsMenu AppsAction = iota
	AppsBackup
	AppsRestore
	AppsStatus
)

// AppsData seeds the app-profile screen.
type AppsData struct {
	Action AppsAction
	Force  bool
}

// KeysAction selects the key-management operation.
type KeysAction int

// Key management actions.
const (
	KeysSetup KeysAction = iota
	KeysBackup
	KeysRestore
	KeysStatus
)

// KeysData seeds the key-management screen.
type KeysData struct {
	Action KeysAction
	Force  bool
}

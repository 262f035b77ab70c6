// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package tui implements the interactive terminal interface following
// the tree-of-models pattern: a root application owning global overlays
// and a content model per screen.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/tui/models"
	"github.com/nixforge/forge/internal/tui/styles"
	"golang.org/x/term"
)

// ErrNoTerminal is returned when the TUI is launched in a non-terminal
// environment.
var ErrNoTerminal = errors.New("TUI requires a terminal environment")

// maxCommitLines is the height of the pending-commit list view.
const maxCommitLines = 15

// idler is implemented by content models that accept the global quit key.
type idler interface {
	Idle() bool
}

// App is the root TUI model. It owns the command channel, the screen
// log, the exit-confirmation and pending-updates overlays, and delegates
// everything else to the current screen model.
//
//nolint:containedctx // TUI models require context for proper cancellation propagation
type App struct {
	width  int
	height int

	styles        *styles.Styles
	ctx           context.Context //nolint:containedctx
	currentScreen int
	contentModel  tea.Model

	tx        chan commands.Message
	screenLog *ScreenLog

	showExitConfirm bool

	pending        *commands.PendingUpdates
	pendingCursor  int
	viewingCommits bool
	commitScroll   int

	startupCheckRunning bool

	quitting bool
}

// NewApp creates the root application starting at the given screen.
func NewApp(ctx context.Context, screen int, data any) *App {
	app := &App{
		styles:        styles.New(),
		ctx:           ctx,
		currentScreen: screen,
		tx:            make(chan commands.Message, commands.ChannelSize),
	}

	if log, err := OpenScreenLog(); err == nil {
		app.screenLog = log
	}

	app.contentModel = app.createModel(screen, data)

	return app
}

// Run starts the TUI application with the provided context.
func (a *App) Run(ctx context.Context) error {
	program := tea.NewProgram(
		a,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err := program.Run()

	a.screenLog.Close()

	if path := a.screenLog.Path(); path != "" {
		fmt.Printf("Screen log: %s\n", path)
	}

	if err != nil {
		return fmt.Errorf("TUI application failed: %w", err)
	}

	return nil
}

// Launch starts the interactive TUI at the given screen.
func Launch(ctx context.Context, screen int, data any) error {
	if !isTerminal() {
		return fmt.Errorf("terminal check failed: %w", ErrNoTerminal)
	}

	return NewApp(ctx, screen, data).Run(ctx)
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.contentModel.Init(), a.listen()}

	// The main menu checks for pending updates in the background.
	if a.currentScreen == models.MenuScreen {
		a.startupCheckRunning = true

		ctx := a.ctx
		tx := a.tx

		cmds = append(cmds, func() tea.Msg {
			commands.StartQuickUpdateCheck(ctx, tx)
			return nil
		})
	}

	return tea.Batch(cmds...)
}

// listen waits for the next runner progress message.
func (a *App) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-a.tx
		if !ok {
			return nil
		}

		return models.CommandMsg(msg)
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

		var cmd tea.Cmd
		a.contentModel, cmd = a.contentModel.Update(msg)

		return a, cmd

	case models.NavigateMsg:
		return a.navigate(msg.Screen, msg.Data)

	case models.ExitRequestMsg:
		a.showExitConfirm = true
		return a, nil

	case models.CommandMsg:
		return a.handleCommand(commands.Message(msg))

	case tea.KeyMsg:
		return a.handleKey(msg)

	default:
		var cmd tea.Cmd
		a.contentModel, cmd = a.contentModel.Update(msg)

		return a, cmd
	}
}

// handleCommand logs, intercepts global events and forwards the rest to
// the content model, then re-arms the channel listener.
func (a *App) handleCommand(msg commands.Message) (tea.Model, tea.Cmd) {
	switch msg.Kind {
	case commands.Stdout, commands.Stderr:
		a.screenLog.Write(models.StripANSI(msg.Line))
	case commands.UpdatesAvailable:
		a.startupCheckRunning = false

		if msg.Updates.HasUpdates() && a.currentScreen == models.MenuScreen {
			a.pending = msg.Updates
			a.pendingCursor = 0
			a.viewingCommits = false
			a.commitScroll = 0
		}

		return a, a.listen()
	}

	var cmd tea.Cmd
	a.contentModel, cmd = a.contentModel.Update(models.CommandMsg(msg))

	return a, tea.Batch(cmd, a.listen())
}

// handleKey routes keys by overlay priority: exit confirmation, commit
// list, pending-updates dialog, global quit, then the content model.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == models.KeyCtrlC {
		a.quitting = true
		return a, tea.Quit
	}

	if a.showExitConfirm {
		return a.handleExitConfirmKey(key)
	}

	if a.pending != nil && a.viewingCommits {
		return a.handleCommitListKey(key)
	}

	if a.pending != nil {
		return a.handlePendingDialogKey(key)
	}

	if key == "q" || key == "Q" {
		if model, ok := a.contentModel.(idler); ok && model.Idle() {
			a.showExitConfirm = true
			return a, nil
		}
	}

	var cmd tea.Cmd
	a.contentModel, cmd = a.contentModel.Update(msg)

	return a, cmd
}

func (a *App) handleExitConfirmKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case models.KeyEnter, "y", "Y":
		a.quitting = true
		return a, tea.Quit
	case models.KeyEsc, "n", "N":
		a.showExitConfirm = false
	}

	return a, nil
}

func (a *App) handleCommitListKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if a.commitScroll > 0 {
			a.commitScroll--
		}
	case "down", "j":
		if a.commitScroll < len(a.pending.Commits)-1 {
			a.commitScroll++
		}
	case models.KeyEnter:
		a.pending = nil
		a.viewingCommits = false

		return a.navigate(models.UpdateScreen, nil)
	case models.KeyEsc, "backspace":
		a.viewingCommits = false
		a.commitScroll = 0
	}

	return a, nil
}

// pendingOptions builds the dialog choices for what is actually pending.
func (a *App) pendingOptions() []string {
	var options []string

	if a.pending.NixosConfig {
		options = append(options, "View NixOS updates")
	}

	if a.pending.AppProfiles {
		options = append(options, "Update app profiles")
	}

	if a.pending.NixosConfig && a.pending.AppProfiles {
		options = append(options, "Update all")
	}

	options = append(options, "Dismiss")

	return options
}

func (a *App) handlePendingDialogKey(key string) (tea.Model, tea.Cmd) {
	options := a.pendingOptions()

	switch key {
	case "up", "k":
		if a.pendingCursor > 0 {
			a.pendingCursor--
		}
	case "down", "j":
		if a.pendingCursor < len(options)-1 {
			a.pendingCursor++
		}
	case models.KeyEnter:
		return a.selectPendingOption(options[a.pendingCursor])
	case models.KeyEsc, "n", "N":
		a.pending = nil
	}

	return a, nil
}

func (a *App) selectPendingOption(option string) (tea.Model, tea.Cmd) {
	switch option {
	case "View NixOS updates":
		a.viewingCommits = true
		a.commitScroll = 0

		return a, nil
	case "Update app profiles":
		a.pending = nil
		return a.navigate(models.AppsScreen, models.AppsData{Action: models.AppsRestore})
	case "Update all":
		a.pending = nil
		return a.navigate(models.UpdateScreen, nil)
	default: // Dismiss
		a.pending = nil
		return a, nil
	}
}

// navigate replaces the content model. Screens are always created fresh;
// every flow carries its own state.
func (a *App) navigate(screen int, data any) (tea.Model, tea.Cmd) {
	a.currentScreen = screen
	a.contentModel = a.createModel(screen, data)

	cmds := []tea.Cmd{a.contentModel.Init()}

	if a.width > 0 && a.height > 0 {
		var cmd tea.Cmd
		a.contentModel, cmd = a.contentModel.Update(tea.WindowSizeMsg{
			Width:  a.width,
			Height: a.height,
		})

		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	return a, tea.Batch(cmds...)
}

// createModel builds the model for a screen.
//
//nolint:ireturn // Bubble Tea framework requires returning tea.Model interface
func (a *App) createModel(screen int, data any) tea.Model {
	switch screen {
	case models.InstallScreen:
		return models.NewInstall(a.ctx, a.styles, a.tx, data)
	case models.CreateHostScreen:
		return models.NewCreateHost(a.ctx, a.styles, a.tx)
	case models.UpdateScreen:
		return models.NewUpdate(a.ctx, a.styles, a.tx)
	case models.AppsScreen:
		return models.NewApps(a.ctx, a.styles, a.tx, data)
	case models.KeysScreen:
		return models.NewKeys(a.ctx, a.styles, a.tx, data)
	default:
		return models.NewMenu(a.styles, data)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return models.GoodbyeMessage
	}

	if a.showExitConfirm {
		return a.overlay(a.renderExitConfirm())
	}

	if a.pending != nil && a.viewingCommits {
		return a.overlay(a.renderCommitList())
	}

	if a.pending != nil {
		return a.overlay(a.renderPendingDialog())
	}

	content := a.contentModel.View()

	if a.startupCheckRunning && a.currentScreen == models.MenuScreen {
		hint := a.styles.MutedText.Render("Checking for updates...")
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", hint)
	}

	return content
}

// overlay centers a dialog in the full window.
func (a *App) overlay(dialog string) string {
	if a.width <= 0 || a.height <= 0 {
		return dialog
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, dialog)
}

func (a *App) renderExitConfirm() string {
	var builder strings.Builder

	builder.WriteString(a.styles.Title.Render("Quit Forge?"))
	builder.WriteString("\n\n")
	builder.WriteString(a.styles.Keybinding("y/enter", "quit"))
	builder.WriteString("  ")
	builder.WriteString(a.styles.Keybinding("n/esc", "stay"))

	return a.styles.Dialog.Render(builder.String())
}

func (a *App) renderPendingDialog() string {
	var builder strings.Builder

	builder.WriteString(a.styles.Title.Render("Updates Available"))
	builder.WriteString("\n\n")

	if a.pending.NixosConfig {
		builder.WriteString(fmt.Sprintf("  %d configuration commit(s) pending\n", len(a.pending.Commits)))
	}

	if a.pending.AppProfiles {
		builder.WriteString("  App profile updates available\n")
	}

	builder.WriteString("\n")

	for i, option := range a.pendingOptions() {
		if i == a.pendingCursor {
			builder.WriteString(a.styles.Selected.Render(models.SelectedPrefix + option))
		} else {
			builder.WriteString(a.styles.Unselected.Render("  " + option))
		}

		builder.WriteString("\n")
	}

	return a.styles.Dialog.Render(builder.String())
}

func (a *App) renderCommitList() string {
	var builder strings.Builder

	builder.WriteString(a.styles.Title.Render("Pending Configuration Commits"))
	builder.WriteString("\n\n")

	commits := a.pending.Commits

	start := a.commitScroll
	if start > len(commits) {
		start = len(commits)
	}

	end := start + maxCommitLines
	if end > len(commits) {
		end = len(commits)
	}

	for _, commit := range commits[start:end] {
		builder.WriteString(a.styles.WarningText.Render(commit.Hash))
		builder.WriteString(" " + commit.Message + "\n")
	}

	if len(commits) > end {
		builder.WriteString(a.styles.MutedText.Render(fmt.Sprintf("  ... %d more", len(commits)-end)))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(a.styles.Keybinding("enter", "run update"))
	builder.WriteString("  ")
	builder.WriteString(a.styles.Keybinding("esc", "back"))

	return a.styles.Dialog.Render(builder.String())
}

// isTerminal checks if stdout is connected to a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

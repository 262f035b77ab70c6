// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/system"
	"github.com/nixforge/forge/internal/tui/styles"
)

type installPhase int

const (
	installSelectHost installPhase = iota
	installSelectDisk
	installCredentials
	installConfirm
	installRunning
	installComplete
)

// Credential entry fields, cycled with tab.
const (
	fieldUsername = iota
	fieldPassword
	fieldConfirmPassword
	fieldCount
)

const notLiveISOMessage = `Installation requires the NixOS live ISO.

Boot the installer image and run:

  nix run github:DigitalPals/nixos-config`

// disksLoadedMsg carries the result of disk discovery.
type disksLoadedMsg struct {
	disks []system.DiskInfo
	err   error
}

// Install walks through host selection, disk selection, credentials,
// confirmation and the installation itself.
type Install struct {
	styles  *styles.Styles
	ctx     context.Context
	tx      chan<- commands.Message
	spinner spinner.Model
	phase   installPhase

	hosts      []system.HostConfig
	hostCursor int

	disks      []system.DiskInfo
	diskCursor int
	diskErr    string

	hostname string
	disk     string

	inputs       [fieldCount]textinput.Model
	activeField  int
	confirmInput textinput.Model
	inputErr     string

	fromWizard bool

	steps   *StepList
	output  *Output
	done    bool
	success bool
	errMsg  string

	width  int
	height int
}

// NewInstall creates the install screen, optionally seeded with a
// hostname and disk from the CLI or the create-host wizard.
func NewInstall(ctx context.Context, styleConfig *styles.Styles, tx chan<- commands.Message, data any) *Install {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = styleConfig.PrimaryText

	model := &Install{
		styles:  styleConfig,
		ctx:     ctx,
		tx:      tx,
		spinner: spin,
		output:  NewOutput(),
	}

	model.initInputs()

	seed, _ := data.(InstallData)
	model.hostname = seed.Hostname
	model.disk = seed.Disk
	model.fromWizard = seed.FromWizard

	if !seed.FromWizard && !system.IsLiveISO() {
		model.phase = installComplete
		model.done = true
		model.success = false
		model.errMsg = notLiveISOMessage

		return model
	}

	switch {
	case seed.Hostname != "" && seed.Disk != "":
		model.phase = installCredentials
		model.inputs[fieldUsername].Focus()
	case seed.Hostname != "":
		model.phase = installSelectDisk
	default:
		model.phase = installSelectHost
		model.hosts = system.DiscoverHosts()
	}

	return model
}

func (m *Install) initInputs() {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = MaxInputLength

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = MaxInputLength
	password.EchoMode = textinput.EchoPassword

	confirm := textinput.New()
	confirm.Placeholder = "confirm password"
	confirm.CharLimit = MaxInputLength
	confirm.EchoMode = textinput.EchoPassword

	m.inputs[fieldUsername] = username
	m.inputs[fieldPassword] = password
	m.inputs[fieldConfirmPassword] = confirm

	m.confirmInput = textinput.New()
	m.confirmInput.Placeholder = "type yes to continue"
	m.confirmInput.CharLimit = MaxInputLength
}

// Init implements tea.Model.
func (m *Install) Init() tea.Cmd {
	switch m.phase {
	case installSelectDisk:
		return loadDisks
	case installCredentials:
		return textinput.Blink
	default:
		return nil
	}
}

func loadDisks() tea.Msg {
	disks, err := system.AvailableDisks()
	return disksLoadedMsg{disks: disks, err: err}
}

// enterSelectDisk resets the disk list so every visit re-detects; stale
// entries must never be selectable while detection runs.
func (m *Install) enterSelectDisk() {
	m.phase = installSelectDisk
	m.disks = nil
	m.diskCursor = 0
}

// Idle reports whether the global quit key applies.
func (m *Install) Idle() bool {
	switch m.phase {
	case installSelectHost, installSelectDisk, installComplete:
		return true
	default:
		return false
	}
}

// Update implements tea.Model.
func (m *Install) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
	case disksLoadedMsg:
		m.disks = msg.disks
		m.diskCursor = 0
		m.diskErr = ""

		if msg.err != nil {
			m.diskErr = msg.err.Error()
		}
	case CommandMsg:
		m.applyCommand(commands.Message(msg))
	}

	return m, nil
}

func (m *Install) applyCommand(msg commands.Message) {
	switch msg.Kind {
	case commands.Stdout, commands.Stderr:
		m.output.Append(msg.Line)
	case commands.StepComplete, commands.StepSkipped:
		if m.steps != nil {
			m.steps.Apply(msg)
		}
	case commands.StepFailed:
		if m.steps != nil {
			m.steps.Apply(msg)
		}

		if msg.Err != nil {
			m.errMsg = msg.Err.Summary
		}
	case commands.Done:
		if m.phase == installRunning {
			m.phase = installComplete
			m.done = true
			m.success = msg.Success

			if m.steps != nil {
				m.steps.FinishPending()
			}
		}
	}
}

func (m *Install) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case installSelectHost:
		return m.handleSelectHostKey(msg)
	case installSelectDisk:
		return m.handleSelectDiskKey(msg)
	case installCredentials:
		return m.handleCredentialsKey(msg)
	case installConfirm:
		return m.handleConfirmKey(msg)
	case installRunning:
		return m.handleRunningKey(msg)
	case installComplete:
		return m.handleCompleteKey(msg)
	}

	return m, nil
}

func (m *Install) handleSelectHostKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := len(m.hosts) + 1 // leading "New host configuration" entry

	switch msg.String() {
	case "up", "k":
		if m.hostCursor > 0 {
			m.hostCursor--
		}
	case "down", "j":
		if m.hostCursor < items-1 {
			m.hostCursor++
		}
	case KeyEnter:
		if m.hostCursor == 0 {
			return m, Navigate(CreateHostScreen, nil)
		}

		m.hostname = m.hosts[m.hostCursor-1].Name
		m.enterSelectDisk()

		return m, loadDisks
	case KeyEsc:
		return m, Navigate(MenuScreen, MenuData{Selected: menuInstall})
	}

	return m, nil
}

func (m *Install) handleSelectDiskKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.diskCursor > 0 {
			m.diskCursor--
		}
	case "down", "j":
		if m.diskCursor < len(m.disks)-1 {
			m.diskCursor++
		}
	case KeyEnter:
		if len(m.disks) == 0 {
			return m, nil
		}

		m.disk = m.disks[m.diskCursor].Path
		m.phase = installCredentials
		m.inputErr = ""
		m.inputs[fieldUsername].Focus()

		return m, textinput.Blink
	case KeyEsc:
		if m.fromWizard || m.hostname == "" {
			return m, Navigate(MenuScreen, MenuData{Selected: menuInstall})
		}

		m.phase = installSelectHost
		m.hosts = system.DiscoverHosts()
	}

	return m, nil
}

func (m *Install) handleCredentialsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		m.focusField((m.activeField + 1) % fieldCount)
		return m, textinput.Blink
	case "shift+tab", "up":
		m.focusField((m.activeField + fieldCount - 1) % fieldCount)
		return m, textinput.Blink
	case KeyEnter:
		return m.submitCredentials()
	case KeyEsc:
		m.enterSelectDisk()
		m.blurInputs()

		return m, loadDisks
	}

	var cmd tea.Cmd
	m.inputs[m.activeField], cmd = m.inputs[m.activeField].Update(msg)

	// Usernames are lowercase on NixOS; fold as the user types.
	if m.activeField == fieldUsername {
		value := m.inputs[fieldUsername].Value()
		if lower := strings.ToLower(value); lower != value {
			m.inputs[fieldUsername].SetValue(lower)
			m.inputs[fieldUsername].CursorEnd()
		}
	}

	return m, cmd
}

func (m *Install) focusField(field int) {
	m.blurInputs()
	m.activeField = field
	m.inputs[m.activeField].Focus()
}

func (m *Install) blurInputs() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m *Install) submitCredentials() (tea.Model, tea.Cmd) {
	username := m.inputs[fieldUsername].Value()
	if err := ValidateUsername(username); err != nil {
		m.inputErr = err.Error()
		m.focusField(fieldUsername)

		return m, textinput.Blink
	}

	password := m.inputs[fieldPassword].Value()
	confirm := m.inputs[fieldConfirmPassword].Value()

	if err := ValidatePassword(password, confirm); err != nil {
		m.inputErr = err.Error()
		m.focusField(fieldPassword)

		return m, textinput.Blink
	}

	m.inputErr = ""
	m.blurInputs()
	m.phase = installConfirm
	m.confirmInput.SetValue("")
	m.confirmInput.Focus()

	return m, textinput.Blink
}

func (m *Install) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEnter:
		if !strings.EqualFold(strings.TrimSpace(m.confirmInput.Value()), "yes") {
			m.inputErr = `type "yes" to start the installation`
			return m, nil
		}

		return m.startInstall()
	case KeyEsc:
		m.phase = installCredentials
		m.inputErr = ""
		m.confirmInput.Blur()
		m.focusField(fieldUsername)

		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.confirmInput, cmd = m.confirmInput.Update(msg)

	return m, cmd
}

func (m *Install) startInstall() (tea.Model, tea.Cmd) {
	m.phase = installRunning
	m.inputErr = ""
	m.confirmInput.Blur()
	m.steps = NewStepList(
		"Checking network connectivity",
		"Enabling Nix flakes",
		"Cloning configuration repository",
		"Configuring disk device",
		"Running disko (partitioning)",
		"Installing NixOS",
		"Setting up user account",
	)
	m.output = NewOutput()

	hostname := m.hostname
	disk := m.disk
	username := m.inputs[fieldUsername].Value()
	password := m.inputs[fieldPassword].Value()

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		commands.StartInstall(m.ctx, m.tx, hostname, disk, username, password)
		return nil
	})
}

func (m *Install) handleRunningKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.output.ScrollUp(outputHeight)
	case "down", "j":
		m.output.ScrollDown(outputHeight)
	}

	return m, nil
}

func (m *Install) handleCompleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.output.ScrollUp(outputHeight)
	case "down", "j":
		m.output.ScrollDown(outputHeight)
	case KeyEnter, KeyEsc:
		return m, Navigate(MenuScreen, MenuData{Selected: menuInstall})
	}

	return m, nil
}

// View implements tea.Model.
func (m *Install) View() string {
	switch m.phase {
	case installSelectHost:
		return m.viewSelectHost()
	case installSelectDisk:
		return m.viewSelectDisk()
	case installCredentials:
		return m.viewCredentials()
	case installConfirm:
		return m.viewConfirm()
	case installRunning:
		return m.viewRunning()
	default:
		return m.viewComplete()
	}
}

func (m *Install) viewSelectHost() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("Install NixOS — Select Host"))
	builder.WriteString("\n\n")

	items := make([]string, 0, len(m.hosts)+1)
	items = append(items, NewHostMenuItem)

	for _, host := range m.hosts {
		label := host.Name
		if host.Description != "" {
			label += "  " + m.styles.MutedText.Render(host.Description)
		}

		items = append(items, label)
	}

	for i, item := range items {
		builder.WriteString(m.renderRow(i == m.hostCursor, item))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(m.styles.Keybinding("enter", "select"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

func (m *Install) viewSelectDisk() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("Install NixOS — Select Disk"))
	builder.WriteString("\n\n")

	if m.diskErr != "" {
		builder.WriteString(m.styles.ErrorText.Render("Disk detection failed: " + m.diskErr))
		builder.WriteString("\n")
	}

	if len(m.disks) == 0 {
		builder.WriteString(m.styles.MutedText.Render("  Scanning for disks..."))
		builder.WriteString("\n")
	}

	for i, disk := range m.disks {
		label := fmt.Sprintf("%s  %s", disk.Path, disk.Size)
		if disk.Model != "" {
			label += "  " + disk.Model
		}

		builder.WriteString(m.renderRow(i == m.diskCursor, label))
		builder.WriteString("\n")

		if i == m.diskCursor {
			for _, part := range disk.Partitions {
				detail := fmt.Sprintf("      %s %s %s", part.Path, part.Size, part.Fstype)
				if part.Os != "" {
					detail += "  [" + string(part.Os) + "]"
				}

				builder.WriteString(m.styles.MutedText.Render(detail))
				builder.WriteString("\n")
			}
		}
	}

	builder.WriteString("\n")
	builder.WriteString(m.styles.WarningText.Render("  The selected disk will be completely erased."))
	builder.WriteString("\n\n")
	builder.WriteString(m.styles.Keybinding("enter", "select"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

func (m *Install) viewCredentials() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("Install NixOS — User Account"))
	builder.WriteString("\n\n")

	labels := [fieldCount]string{"Username", "Password", "Confirm password"}
	for i, input := range m.inputs {
		builder.WriteString(fmt.Sprintf("  %-18s %s\n", labels[i], input.View()))
	}

	if m.inputErr != "" {
		builder.WriteString("\n")
		builder.WriteString(m.styles.ErrorText.Render("  " + m.inputErr))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(m.styles.Keybinding("tab", "next field"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("enter", "continue"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

func (m *Install) viewConfirm() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("Install NixOS — Confirm"))
	builder.WriteString("\n\n")
	builder.WriteString(fmt.Sprintf("  Host:      %s\n", m.hostname))
	builder.WriteString(fmt.Sprintf("  Disk:      %s\n", m.disk))
	builder.WriteString(fmt.Sprintf("  Username:  %s\n", m.inputs[fieldUsername].Value()))
	builder.WriteString("\n")
	builder.WriteString(m.styles.ErrorText.Render("  ALL DATA ON " + m.disk + " WILL BE ERASED."))
	builder.WriteString("\n\n")
	builder.WriteString("  " + m.confirmInput.View())
	builder.WriteString("\n")

	if m.inputErr != "" {
		builder.WriteString("\n")
		builder.WriteString(m.styles.ErrorText.Render("  " + m.inputErr))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(m.styles.Keybinding("enter", "install"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

func (m *Install) viewRunning() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("Installing NixOS"))
	builder.WriteString("\n\n")
	builder.WriteString(m.steps.View(m.styles, m.spinner.View()))
	builder.WriteString("\n")
	builder.WriteString(m.output.View(m.styles, m.width, outputHeight))
	builder.WriteString("\n\n")
	builder.WriteString(m.styles.Keybinding("↑/↓", "scroll output"))

	return builder.String()
}

func (m *Install) viewComplete() string {
	var builder strings.Builder

	if m.success {
		builder.WriteString(m.styles.Title.Render("Installation Complete"))
		builder.WriteString("\n\n")
		builder.WriteString(m.styles.SuccessText.Render("  NixOS has been installed on " + m.disk + "."))
		builder.WriteString("\n\n")
		builder.WriteString("  Remove the installation media and reboot.\n")
	} else {
		builder.WriteString(m.styles.Title.Render("Installation Failed"))
		builder.WriteString("\n\n")

		message := m.errMsg
		if message == "" {
			message = "Installation did not complete."
		}

		for _, line := range strings.Split(message, "\n") {
			builder.WriteString("  " + line + "\n")
		}
	}

	// The captured log stays reviewable after the run finishes.
	builder.WriteString("\n")
	builder.WriteString(m.output.View(m.styles, m.width, outputHeight))
	builder.WriteString("\n\n")
	builder.WriteString(m.styles.Keybinding("↑/↓", "scroll output"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("enter", "back to menu"))

	return builder.String()
}

func (m *Install) renderRow(selected bool, label string) string {
	var (
		style  lipgloss.Style
		prefix string
	)

	if selected {
		style = m.styles.Selected
		prefix = SelectedPrefix
	} else {
		style = m.styles.Unselected
		prefix = "  "
	}

	return style.Render(prefix + label)
}

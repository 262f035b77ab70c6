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
	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/system"
	"github.com/nixforge/forge/internal/tui/styles"
)

type createHostPhase int

const (
	createHostDetecting createHostPhase = iota
	createHostConfirmCpu
	createHostConfirmGpu
	createHostConfirmFormFactor
	createHostSelectDisk
	createHostEnterHostname
	createHostReview
	createHostGenerating
	createHostComplete
)

// Manual override choices shown when a detection result is rejected.
var (
	cpuOverrides        = []system.CpuVendor{system.CpuAMD, system.CpuIntel}
	gpuOverrides        = []system.GpuVendor{system.GpuNVIDIA, system.GpuAMD, system.GpuIntel, system.GpuNone}
	formFactorOverrides = []system.FormFactor{system.Desktop, system.Laptop}
)

const manualSuffix = " (manually selected)"

// hardwareDetectedMsg carries the result of hardware detection.
type hardwareDetectedMsg struct {
	info system.HardwareInfo
	err  error
}

// CreateHost is the new-host wizard: hardware detection with manual
// overrides, disk selection, hostname entry, review and generation.
type CreateHost struct {
	styles  *styles.Styles
	ctx     context.Context
	tx      chan<- commands.Message
	spinner spinner.Model
	phase   createHostPhase

	detected  system.HardwareInfo
	detectErr string
	config    system.NewHostConfig

	// overriding switches a confirm screen to its manual choice list.
	overriding     bool
	overrideCursor int

	disks      []system.DiskInfo
	diskCursor int
	diskErr    string

	hostnameInput textinput.Model
	inputErr      string

	steps   *StepList
	output  *Output
	done    bool
	success bool
	errMsg  string

	width  int
	height int
}

// NewCreateHost creates the new-host wizard starting at hardware
// detection.
func NewCreateHost(ctx context.Context, styleConfig *styles.Styles, tx chan<- commands.Message) *CreateHost {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = styleConfig.PrimaryText

	input := textinput.New()
	input.Placeholder = "hostname"
	input.CharLimit = MaxInputLength

	return &CreateHost{
		styles:        styleConfig,
		ctx:           ctx,
		tx:            tx,
		spinner:       spin,
		hostnameInput: input,
		output:        NewOutput(),
	}
}

// Init implements tea.Model.
func (m *CreateHost) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		info, err := system.DetectAll()
		return hardwareDetectedMsg{info: info, err: err}
	})
}

// Idle reports whether the global quit key applies.
func (m *CreateHost) Idle() bool {
	return m.phase == createHostComplete
}

// Update implements tea.Model.
func (m *CreateHost) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
	case hardwareDetectedMsg:
		m.applyDetection(msg)
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

// enterSelectDisk resets the disk list so every visit re-detects; stale
// entries must never be selectable while detection runs.
func (m *CreateHost) enterSelectDisk() {
	m.phase = createHostSelectDisk
	m.disks = nil
	m.diskCursor = 0
}

func (m *CreateHost) applyDetection(msg hardwareDetectedMsg) {
	if m.phase != createHostDetecting {
		return
	}

	m.detected = msg.info
	m.config.Cpu = msg.info.Cpu
	m.config.Gpu = msg.info.Gpu
	m.config.FormFactor = msg.info.FormFactor
	m.phase = createHostConfirmCpu

	if msg.err != nil {
		m.detectErr = "detection failed"
		m.overriding = true
		m.overrideCursor = 0

		return
	}

	// Nothing to confirm when the vendor could not be identified.
	if msg.info.Cpu.Vendor == system.CpuUnknown {
		m.overriding = true
		m.overrideCursor = 0
	}
}

func (m *CreateHost) applyCommand(msg commands.Message) {
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
		if m.phase == createHostGenerating {
			m.phase = createHostComplete
			m.done = true
			m.success = msg.Success

			if m.steps != nil {
				m.steps.FinishPending()
			}
		}
	}
}

func (m *CreateHost) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case createHostDetecting:
		if msg.String() == KeyEsc {
			return m, Navigate(InstallScreen, nil)
		}
	case createHostConfirmCpu:
		return m.handleConfirmCpuKey(msg)
	case createHostConfirmGpu:
		return m.handleConfirmGpuKey(msg)
	case createHostConfirmFormFactor:
		return m.handleConfirmFormFactorKey(msg)
	case createHostSelectDisk:
		return m.handleSelectDiskKey(msg)
	case createHostEnterHostname:
		return m.handleHostnameKey(msg)
	case createHostReview:
		return m.handleReviewKey(msg)
	case createHostGenerating:
		return m.handleGeneratingKey(msg)
	case createHostComplete:
		return m.handleCompleteKey(msg)
	}

	return m, nil
}

func (m *CreateHost) moveOverrideCursor(delta, count int) {
	next := m.overrideCursor + delta
	if next >= 0 && next < count {
		m.overrideCursor = next
	}
}

func (m *CreateHost) handleConfirmCpuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overriding {
		switch msg.String() {
		case "up", "k":
			m.moveOverrideCursor(-1, len(cpuOverrides))
		case "down", "j":
			m.moveOverrideCursor(1, len(cpuOverrides))
		case KeyEnter:
			vendor := cpuOverrides[m.overrideCursor]
			m.config.Cpu = system.CpuInfo{
				Vendor:    vendor,
				ModelName: vendor.String() + manualSuffix,
			}
			m.overriding = false
			m.toConfirmGpu()
		case KeyEsc:
			return m, Navigate(InstallScreen, nil)
		}

		return m, nil
	}

	switch msg.String() {
	case "y", "Y", KeyEnter:
		m.toConfirmGpu()
	case "n", "N":
		m.overriding = true
		m.overrideCursor = 0
	case KeyEsc:
		return m, Navigate(InstallScreen, nil)
	}

	return m, nil
}

func (m *CreateHost) toConfirmGpu() {
	m.phase = createHostConfirmGpu
	m.overriding = m.detected.Gpu.Vendor == system.GpuNone
	m.overrideCursor = 0
}

func (m *CreateHost) handleConfirmGpuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overriding {
		switch msg.String() {
		case "up", "k":
			m.moveOverrideCursor(-1, len(gpuOverrides))
		case "down", "j":
			m.moveOverrideCursor(1, len(gpuOverrides))
		case KeyEnter:
			vendor := gpuOverrides[m.overrideCursor]

			model := ""
			if vendor != system.GpuNone {
				model = vendor.String() + manualSuffix
			}

			m.config.Gpu = system.GpuInfo{Vendor: vendor, Model: model}
			m.overriding = false
			m.phase = createHostConfirmFormFactor
		case KeyEsc:
			m.phase = createHostConfirmCpu
			m.overriding = false
		}

		return m, nil
	}

	switch msg.String() {
	case "y", "Y", KeyEnter:
		m.phase = createHostConfirmFormFactor
	case "n", "N":
		m.overriding = true
		m.overrideCursor = 0
	case KeyEsc:
		m.phase = createHostConfirmCpu
		m.overriding = false
	}

	return m, nil
}

func (m *CreateHost) handleConfirmFormFactorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overriding {
		switch msg.String() {
		case "up", "k":
			m.moveOverrideCursor(-1, len(formFactorOverrides))
		case "down", "j":
			m.moveOverrideCursor(1, len(formFactorOverrides))
		case KeyEnter:
			m.config.FormFactor = formFactorOverrides[m.overrideCursor]
			m.overriding = false
			m.enterSelectDisk()

			return m, loadDisks
		case KeyEsc:
			m.phase = createHostConfirmGpu
			m.overriding = false
		}

		return m, nil
	}

	switch msg.String() {
	case "y", "Y", KeyEnter:
		m.enterSelectDisk()
		return m, loadDisks
	case "n", "N":
		m.overriding = true
		m.overrideCursor = 0
	case KeyEsc:
		m.phase = createHostConfirmGpu
		m.overriding = false
	}

	return m, nil
}

func (m *CreateHost) handleSelectDiskKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
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

		m.config.Disk = m.disks[m.diskCursor]
		m.phase = createHostEnterHostname
		m.inputErr = ""
		m.hostnameInput.Focus()

		return m, textinput.Blink
	case KeyEsc:
		m.phase = createHostConfirmFormFactor
		m.overriding = false
	}

	return m, nil
}

func (m *CreateHost) handleHostnameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEnter:
		name := strings.TrimSpace(m.hostnameInput.Value())

		existing := make([]string, 0)
		for _, host := range system.DiscoverHosts() {
			existing = append(existing, host.Name)
		}

		if err := ValidateHostname(name, existing); err != nil {
			m.inputErr = err.Error()
			return m, nil
		}

		m.config.Hostname = name
		m.inputErr = ""
		m.hostnameInput.Blur()
		m.phase = createHostReview

		return m, nil
	case KeyEsc:
		m.enterSelectDisk()
		m.hostnameInput.Blur()

		return m, loadDisks
	}

	var cmd tea.Cmd
	m.hostnameInput, cmd = m.hostnameInput.Update(msg)

	return m, cmd
}

func (m *CreateHost) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEnter:
		return m.startGeneration()
	case KeyEsc:
		m.phase = createHostEnterHostname
		m.hostnameInput.SetValue(m.config.Hostname)
		m.hostnameInput.Focus()

		return m, textinput.Blink
	}

	return m, nil
}

func (m *CreateHost) startGeneration() (tea.Model, tea.Cmd) {
	m.phase = createHostGenerating

	names := []string{
		"Creating host directory",
		"Generating hardware configuration",
		"Creating host configuration",
		"Creating disko configuration",
		"Updating flake.nix",
		"Generating host metadata",
	}
	if system.IsLiveISO() {
		names = append([]string{"Cloning configuration repository"}, names...)
	}

	m.steps = NewStepList(names...)
	m.output = NewOutput()

	config := m.config

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		commands.StartCreateHost(m.ctx, m.tx, &config)
		return nil
	})
}

func (m *CreateHost) handleGeneratingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.output.ScrollUp(outputHeight)
	case "down", "j":
		m.output.ScrollDown(outputHeight)
	}

	return m, nil
}

func (m *CreateHost) handleCompleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.success {
		if msg.String() == KeyEnter || msg.String() == KeyEsc {
			return m, Navigate(InstallScreen, nil)
		}

		return m, nil
	}

	switch msg.String() {
	case "y", "Y", KeyEnter:
		// Continue straight into installation with the new host.
		return m, Navigate(InstallScreen, InstallData{
			Hostname:   m.config.Hostname,
			Disk:       m.config.Disk.Path,
			FromWizard: true,
		})
	case "n", "N", KeyEsc:
		return m, Navigate(InstallScreen, nil)
	}

	return m, nil
}

// View implements tea.Model.
func (m *CreateHost) View() string {
	switch m.phase {
	case createHostDetecting:
		return m.viewDetecting()
	case createHostConfirmCpu:
		return m.viewConfirm("CPU", m.cpuLabel(), cpuOverrideLabels())
	case createHostConfirmGpu:
		return m.viewConfirm("GPU", m.gpuLabel(), gpuOverrideLabels())
	case createHostConfirmFormFactor:
		return m.viewConfirm("Form factor", m.config.FormFactor.String(), formFactorOverrideLabels())
	case createHostSelectDisk:
		return m.viewSelectDisk()
	case createHostEnterHostname:
		return m.viewEnterHostname()
	case createHostReview:
		return m.viewReview()
	case createHostGenerating:
		return m.viewGenerating()
	default:
		return m.viewComplete()
	}
}

func (m *CreateHost) cpuLabel() string {
	if m.detectErr != "" {
		return "Unknown (detection failed)"
	}

	return fmt.Sprintf("%s (%s)", m.config.Cpu.Vendor, m.config.Cpu.ModelName)
}

func (m *CreateHost) gpuLabel() string {
	if m.config.Gpu.Model != "" {
		return fmt.Sprintf("%s (%s)", m.config.Gpu.Vendor, m.config.Gpu.Model)
	}

	return m.config.Gpu.Vendor.String()
}

func cpuOverrideLabels() []string {
	labels := make([]string, 0, len(cpuOverrides))
	for _, v := range cpuOverrides {
		labels = append(labels, v.String())
	}

	return labels
}

func gpuOverrideLabels() []string {
	labels := make([]string, 0, len(gpuOverrides))
	for _, v := range gpuOverrides {
		labels = append(labels, v.String())
	}

	return labels
}

func formFactorOverrideLabels() []string {
	labels := make([]string, 0, len(formFactorOverrides))
	for _, v := range formFactorOverrides {
		labels = append(labels, v.String())
	}

	return labels
}

func (m *CreateHost) viewDetecting() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("New Host — Hardware Detection"))
	builder.WriteString("\n\n")
	builder.WriteString("  ")
	builder.WriteString(m.spinner.View())
	builder.WriteString(" Detecting hardware...")
	builder.WriteString("\n\n")
	builder.WriteString(m.styles.Keybinding("esc", "cancel"))

	return builder.String()
}

func (m *CreateHost) viewConfirm(what, detected string, overrides []string) string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("New Host — Confirm " + what))
	builder.WriteString("\n\n")

	if m.overriding {
		builder.WriteString(fmt.Sprintf("  Select the %s:\n\n", strings.ToLower(what)))

		for i, label := range overrides {
			builder.WriteString(m.renderRow(i == m.overrideCursor, label))
			builder.WriteString("\n")
		}

		builder.WriteString("\n")
		builder.WriteString(m.styles.Keybinding("enter", "select"))
		builder.WriteString("  ")
		builder.WriteString(m.styles.Keybinding("esc", "back"))

		return builder.String()
	}

	builder.WriteString(fmt.Sprintf("  Detected %s: %s\n\n", strings.ToLower(what), m.styles.PrimaryText.Render(detected)))
	builder.WriteString("  Is this correct?\n\n")
	builder.WriteString(m.styles.Keybinding("y/enter", "yes"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("n", "choose manually"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

func (m *CreateHost) viewSelectDisk() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("New Host — Select Disk"))
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
	}

	builder.WriteString("\n")
	builder.WriteString(m.styles.Keybinding("enter", "select"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

func (m *CreateHost) viewEnterHostname() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("New Host — Hostname"))
	builder.WriteString("\n\n")
	builder.WriteString("  " + m.hostnameInput.View())
	builder.WriteString("\n")

	if m.inputErr != "" {
		builder.WriteString("\n")
		builder.WriteString(m.styles.ErrorText.Render("  " + m.inputErr))
		builder.WriteString("\n")
	}

	builder.WriteString("\n")
	builder.WriteString(m.styles.Keybinding("enter", "continue"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

func (m *CreateHost) viewReview() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("New Host — Review"))
	builder.WriteString("\n\n")
	builder.WriteString(fmt.Sprintf("  Hostname:     %s\n", m.config.Hostname))
	builder.WriteString(fmt.Sprintf("  CPU:          %s\n", m.cpuLabel()))
	builder.WriteString(fmt.Sprintf("  GPU:          %s\n", m.gpuLabel()))
	builder.WriteString(fmt.Sprintf("  Form factor:  %s\n", m.config.FormFactor))
	builder.WriteString(fmt.Sprintf("  Disk:         %s (%s)\n", m.config.Disk.Path, m.config.Disk.Size))
	builder.WriteString("\n")
	builder.WriteString(m.styles.Keybinding("enter", "generate configuration"))
	builder.WriteString("  ")
	builder.WriteString(m.styles.Keybinding("esc", "back"))

	return builder.String()
}

func (m *CreateHost) viewGenerating() string {
	var builder strings.Builder

	builder.WriteString(m.styles.Title.Render("Generating Host Configuration"))
	builder.WriteString("\n\n")
	builder.WriteString(m.steps.View(m.styles, m.spinner.View()))
	builder.WriteString("\n")
	builder.WriteString(m.output.View(m.styles, m.width, outputHeight))

	return builder.String()
}

func (m *CreateHost) viewComplete() string {
	var builder strings.Builder

	if m.success {
		builder.WriteString(m.styles.Title.Render("Host Created"))
		builder.WriteString("\n\n")
		builder.WriteString(m.styles.SuccessText.Render(fmt.Sprintf("  Host '%s' created successfully.", m.config.Hostname)))
		builder.WriteString("\n\n")
		builder.WriteString("  Install NixOS on this host now?\n\n")
		builder.WriteString(m.styles.Keybinding("y/enter", "install"))
		builder.WriteString("  ")
		builder.WriteString(m.styles.Keybinding("n", "back to host list"))
	} else {
		builder.WriteString(m.styles.Title.Render("Host Creation Failed"))
		builder.WriteString("\n\n")

		message := m.errMsg
		if message == "" {
			message = "Host configuration could not be generated."
		}

		builder.WriteString(m.styles.ErrorText.Render("  " + message))
		builder.WriteString("\n\n")
		builder.WriteString(m.styles.Keybinding("enter", "back to host list"))
	}

	return builder.String()
}

func (m *CreateHost) renderRow(selected bool, label string) string {
	if selected {
		return m.styles.Selected.Render(SelectedPrefix + label)
	}

	return m.styles.Unselected.Render("  " + label)
}

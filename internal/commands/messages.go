// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package commands runs the long-lived operations (install, update,
// create-host, app profiles, keys) in background goroutines and reports
// progress to the UI over a single buffered channel.
package commands

// Channel and execution limits shared across runners.
const (
	// ChannelSize is the capacity of the runner-to-UI message channel.
	ChannelSize = 100

	// DefaultTimeout is the per-command execution timeout in seconds.
	DefaultTimeout = 300

	// OutputBufferSize is the number of output lines retained for display.
	OutputBufferSize = 100
)

// Message is a progress event sent from a runner goroutine to the UI.
// Exactly one of the kind-specific fields is meaningful, selected by Kind.
type Message struct {
	Kind MessageKind

	// Line carries the text for Stdout and Stderr messages.
	Line string

	// Step names the step for StepComplete, StepFailed and StepSkipped.
	// Runners use short canonical keys ("flake", "Rebuild"); the UI matches
	// them fuzzily against display names.
	Step string

	// Err carries the classified failure for StepFailed.
	Err *ParsedError

	// Success reports the overall outcome for Done.
	Success bool

	// Updates carries the startup-check result for UpdatesAvailable.
	Updates *PendingUpdates
}

// MessageKind discriminates Message variants.
type MessageKind int

// Message kinds.
const (
	Stdout MessageKind = iota
	Stderr
	StepComplete
	StepFailed
	StepSkipped
	Done
	UpdatesAvailable
)

// PendingUpdates is the result of the background startup check.
type PendingUpdates struct {
	NixosConfig bool
	AppProfiles bool
	// Commits holds (hash, subject) pairs for config commits behind origin.
	Commits []Commit
}

// Commit is one pending configuration commit.
type Commit struct {
	Hash    string
	Message string
}

// HasUpdates reports whether anything is pending.
func (p *PendingUpdates) HasUpdates() bool {
	return p != nil && (p.NixosConfig || p.AppProfiles)
}

// Canonical step keys emitted by runners. The UI matches these against the
// longer display names, so keys must stay substrings (or first words) of
// their display counterparts.
const (
	StepNetwork    = "network"
	StepFlakes     = "flakes"
	StepRepository = "repository"
	StepDisk       = "disk"
	StepDisko      = "disko"
	StepNixos      = "NixOS"
	StepUser       = "user"

	StepPull        = "Pulling"
	StepFlakeUpdate = "flake"
	StepRebuild     = "Rebuild"
	StepPackages    = "packages"
	StepClaude      = "Claude"
	StepCodex       = "Codex"
	StepBrowser     = "browser"

	StepHost       = "host"
	StepHardware   = "hardware"
	StepHostConfig = "host config"
	StepMetadata   = "metadata"

	StepBackup  = "Backup"
	StepRestore = "Restore"
	StepStatus  = "Status"
	StepSetup   = "Setup"
)

// Convenience constructors keep runner code terse.

func stdoutMsg(line string) Message { return Message{Kind: Stdout, Line: line} }

func stderrMsg(line string) Message { return Message{Kind: Stderr, Line: line} }

func stepCompleteMsg(step string) Message { return Message{Kind: StepComplete, Step: step} }

func stepSkippedMsg(step string) Message { return Message{Kind: StepSkipped, Step: step} }

func stepFailedMsg(step string, err *ParsedError) Message {
	return Message{Kind: StepFailed, Step: step, Err: err}
}

func doneMsg(success bool) Message { return Message{Kind: Done, Success: success} }

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"strings"

	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/tui/styles"
)

// StepStatus is the display state of one progress step.
type StepStatus int

// Step states.
const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepRunning:
		return "running"
	case StepComplete:
		return "complete"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Step is one display row in a progress list.
type Step struct {
	Name   string
	Status StepStatus
}

// StepList tracks sequential steps of a running operation. The first step
// starts in the running state and completion events advance the cursor.
type StepList struct {
	steps   []Step
	current int
}

// NewStepList builds a list from display names with the first step running.
func NewStepList(names ...string) *StepList {
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		steps = append(steps, Step{Name: name, Status: StepPending})
	}

	if len(steps) > 0 {
		steps[0].Status = StepRunning
	}

	return &StepList{steps: steps}
}

// Steps returns the display rows.
func (l *StepList) Steps() []Step {
	return l.steps
}

// stepMatches reports whether a runner's short step key refers to the
// given display name. Keys are substrings of the display name, or share
// its first word.
func stepMatches(displayName, key string) bool {
	if strings.Contains(strings.ToLower(displayName), strings.ToLower(key)) {
		return true
	}

	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return false
	}

	first := fields[0]

	return first == key || strings.Contains(key, first)
}

// find returns the index of the step matching the key, preferring the
// current step, or -1.
func (l *StepList) find(key string) int {
	if l.current < len(l.steps) && stepMatches(l.steps[l.current].Name, key) {
		return l.current
	}

	for i, step := range l.steps {
		if step.Status != StepPending && step.Status != StepRunning {
			continue
		}

		if stepMatches(step.Name, key) {
			return i
		}
	}

	return -1
}

// advance moves the cursor past finished steps and marks the next pending
// step as running.
func (l *StepList) advance() {
	for l.current < len(l.steps) {
		status := l.steps[l.current].Status
		if status == StepPending {
			l.steps[l.current].Status = StepRunning
			return
		}

		if status == StepRunning {
			return
		}

		l.current++
	}
}

// Apply updates the list from a runner progress event and reports whether
// the event was consumed.
func (l *StepList) Apply(msg commands.Message) bool {
	var status StepStatus

	switch msg.Kind {
	case commands.StepComplete:
		status = StepComplete
	case commands.StepSkipped:
		status = StepSkipped
	case commands.StepFailed:
		status = StepFailed
	default:
		return false
	}

	idx := l.find(msg.Step)
	if idx < 0 {
		return false
	}

	l.steps[idx].Status = status
	if idx == l.current {
		l.current++
	}

	l.advance()

	return true
}

// Failed reports whether any step failed.
func (l *StepList) Failed() bool {
	for _, step := range l.steps {
		if step.Status == StepFailed {
			return true
		}
	}

	return false
}

// FinishPending marks any step that never ran as skipped, for rendering a
// completed operation.
func (l *StepList) FinishPending() {
	for i := range l.steps {
		if l.steps[i].Status == StepPending || l.steps[i].Status == StepRunning {
			l.steps[i].Status = StepSkipped
		}
	}
}

// View renders the step rows with status icons.
func (l *StepList) View(s *styles.Styles, spinnerFrame string) string {
	var builder strings.Builder

	for _, step := range l.steps {
		builder.WriteString("  ")
		builder.WriteString(s.StepIcon(step.Status.String(), spinnerFrame))
		builder.WriteString(" ")

		if step.Status == StepRunning {
			builder.WriteString(s.PrimaryText.Render(step.Name))
		} else if step.Status == StepFailed {
			builder.WriteString(s.ErrorText.Render(step.Name))
		} else {
			builder.WriteString(step.Name)
		}

		builder.WriteString("\n")
	}

	return builder.String()
}

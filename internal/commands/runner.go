// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
)

const separator = "=============================================="

// Runner wraps the message channel with the formatting and step-reporting
// helpers shared by all operation runners.
type Runner struct {
	ctx context.Context
	tx  chan<- Message
}

// NewRunner creates a runner bound to a channel.
func NewRunner(ctx context.Context, tx chan<- Message) *Runner {
	return &Runner{ctx: ctx, tx: tx}
}

// Context returns the runner's context for direct executor calls.
func (r *Runner) Context() context.Context {
	return r.ctx
}

// Chan returns the underlying channel for direct executor calls.
func (r *Runner) Chan() chan<- Message {
	return r.tx
}

func (r *Runner) send(msg Message) {
	select {
	case r.tx <- msg:
	case <-r.ctx.Done():
	}
}

// Out sends a stdout line.
func (r *Runner) Out(line string) {
	r.send(stdoutMsg(line))
}

// Outf sends a formatted stdout line.
func (r *Runner) Outf(format string, args ...any) {
	r.send(stdoutMsg(fmt.Sprintf(format, args...)))
}

// Err sends a stderr line.
func (r *Runner) Err(line string) {
	r.send(stderrMsg(line))
}

// Header prints a framed section title.
func (r *Runner) Header(title string) {
	r.Out("")
	r.Out(separator)
	r.Out("  " + title)
	r.Out(separator)
	r.Out("")
}

// Footer closes a framed section.
func (r *Runner) Footer() {
	r.Out("")
	r.Out(separator)
}

// Run executes a command streaming output through the channel.
func (r *Runner) Run(name string, args ...string) (bool, error) {
	return Run(r.ctx, r.tx, name, args...)
}

// StepComplete marks a step done.
func (r *Runner) StepComplete(step string) {
	r.send(stepCompleteMsg(step))
}

// StepSkipped marks a step skipped.
func (r *Runner) StepSkipped(step string) {
	r.send(stepSkippedMsg(step))
}

// StepFailed marks a step failed with a classified error.
func (r *Runner) StepFailed(step, stderr, operation string) {
	r.send(stepFailedMsg(step, ParseStderr(stderr, ErrorContext{Operation: operation})))
}

// Done terminates the operation. Every runner sends exactly one.
func (r *Runner) Done(success bool) {
	r.send(doneMsg(success))
}

// RunSimpleOperation frames a single-command operation with a header, the
// command output, a result line, a footer and the terminal Done message.
func (r *Runner) RunSimpleOperation(title, name string, args []string, successMsg, failureMsg string) (bool, error) {
	r.Header(title)

	success, err := r.Run(name, args...)
	if err != nil {
		return false, err
	}

	r.Out("")

	if success {
		r.Out("  " + successMsg)
	} else {
		r.Out("  " + failureMsg)
	}

	r.Footer()
	r.Done(success)

	return success, nil
}

// Spawn runs an operation body in a background goroutine. If the body
// returns an error the failure is reported as a StepFailed for the given
// best-guess step followed by Done{false}, so the UI never waits forever.
func Spawn(ctx context.Context, tx chan<- Message, operation, step string, body func(*Runner) error) {
	runner := NewRunner(ctx, tx)

	go func() {
		if err := body(runner); err != nil {
			log.Error("operation failed", "operation", operation, "err", err)
			runner.StepFailed(step, err.Error(), operation)
			runner.Done(false)
		}
	}()
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// drainTimeout bounds how long we wait for the output reader goroutines
// after the process has exited.
const drainTimeout = 5 * time.Second

// ExecOptions tunes a single streamed execution.
type ExecOptions struct {
	// Timeout overrides DefaultTimeout when non-zero.
	Timeout time.Duration

	// Transform rewrites or drops output lines before they reach the
	// channel. Returning ok=false drops the line. Nil passes lines through.
	Transform func(line string) (string, bool)
}

// Run executes a command and streams its stdout/stderr lines to the channel.
// Returns whether the command exited successfully; a non-zero exit is not an
// error, only spawn/timeout failures are.
func Run(ctx context.Context, tx chan<- Message, name string, args ...string) (bool, error) {
	return RunWith(ctx, tx, ExecOptions{}, name, args...)
}

// RunWithTimeout executes a command with an explicit timeout.
func RunWithTimeout(ctx context.Context, tx chan<- Message, timeout time.Duration, name string, args ...string) (bool, error) {
	return RunWith(ctx, tx, ExecOptions{Timeout: timeout}, name, args...)
}

// RunTransformed executes a command with a per-line transform hook.
func RunTransformed(ctx context.Context, tx chan<- Message, transform func(string) (string, bool), name string, args ...string) (bool, error) {
	return RunWith(ctx, tx, ExecOptions{Transform: transform}, name, args...)
}

// RunWith executes a command with full option control.
func RunWith(ctx context.Context, tx chan<- Message, opts ExecOptions, name string, args ...string) (bool, error) {
	log.Info("running command", "cmd", name, "args", args)

	return runStreamed(ctx, tx, opts, name, args)
}

// RunSensitive executes a command whose arguments must never reach logs
// (passwords). Output still streams to the channel.
func RunSensitive(ctx context.Context, tx chan<- Message, name string, args ...string) (bool, error) {
	log.Info("running command", "cmd", name, "args", "[hidden]")

	return runStreamed(ctx, tx, ExecOptions{}, name, args)
}

func runStreamed(ctx context.Context, tx chan<- Message, opts ExecOptions, name string, args []string) (bool, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)

	// Parent-owned pipes: cmd.Wait must never close the read ends while the
	// reader goroutines still hold buffered output.
	outRead, outWrite, err := os.Pipe()
	if err != nil {
		return false, fmt.Errorf("capture stdout for %s: %w", name, err)
	}
	defer outRead.Close()

	errRead, errWrite, err := os.Pipe()
	if err != nil {
		outWrite.Close()
		return false, fmt.Errorf("capture stderr for %s: %w", name, err)
	}
	defer errRead.Close()

	cmd.Stdout = outWrite
	cmd.Stderr = errWrite

	if err := cmd.Start(); err != nil {
		outWrite.Close()
		errWrite.Close()

		return false, fmt.Errorf("spawn %s: %w", name, err)
	}

	// The child holds its own descriptors now; drop the parent copies so
	// the readers see EOF once the process exits.
	outWrite.Close()
	errWrite.Close()

	var readers sync.WaitGroup

	readers.Add(2)

	go forwardLines(ctx, tx, Stdout, outRead, opts.Transform, &readers)
	go forwardLines(ctx, tx, Stderr, errRead, opts.Transform, &readers)

	drained := make(chan struct{})
	go func() {
		readers.Wait()
		close(drained)
	}()

	// Wait for process exit first (the context timeout bounds it), then
	// drain the readers with a bound so a grandchild that inherited the
	// pipe never hangs the runner. The deferred closes unblock any reader
	// still stuck past the deadline.
	err = cmd.Wait()

	select {
	case <-drained:
	case <-time.After(drainTimeout):
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return false, fmt.Errorf("command timed out after %ds: %s", int(timeout.Seconds()), name)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Info("command completed", "cmd", name, "success", false)

			return false, nil
		}

		return false, fmt.Errorf("wait for %s: %w", name, err)
	}

	log.Info("command completed", "cmd", name, "success", true)

	return true, nil
}

func forwardLines(ctx context.Context, tx chan<- Message, kind MessageKind, r io.Reader, transform func(string) (string, bool), wg *sync.WaitGroup) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if transform != nil {
			transformed, ok := transform(line)
			if !ok {
				continue
			}

			line = transformed
		}

		select {
		case tx <- Message{Kind: kind, Line: line}:
		case <-ctx.Done():
			return
		}
	}
}

// RunCapture executes a command and buffers its output instead of streaming.
// Used for quick queries (git rev-parse, sha256sum) that never reach the UI.
func RunCapture(ctx context.Context, name string, args ...string) (bool, string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var outBuf, errBuf strings.Builder

	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return false, "", "", fmt.Errorf("execute %s: %w", name, err)
		}

		return false, outBuf.String(), errBuf.String(), nil
	}

	return true, outBuf.String(), errBuf.String(), nil
}

// CommandExists reports whether a command resolves on PATH.
func CommandExists(ctx context.Context, name string) bool {
	return exec.CommandContext(ctx, "which", name).Run() == nil
}

// Output runs a command and returns its trimmed stdout.
func Output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("get output from %s: %w", name, err)
	}

	return strings.TrimSpace(string(out)), nil
}

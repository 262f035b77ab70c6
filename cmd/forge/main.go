// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package main provides the CLI entry point for Forge.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"github.com/nixforge/forge/internal/cli"
	"github.com/nixforge/forge/internal/paths"
)

// Exit codes following Unix conventions.
const (
	ExitSuccess      = 0  // Command completed successfully
	ExitGeneralError = 1  // General errors
	ExitSystemError  = 12 // Disk space, filesystem issues
)

func main() {
	os.Exit(run())
}

func run() int {
	// Acquire process lock to prevent multiple forge instances
	lockPath := filepath.Join(os.TempDir(), "forge.lock")
	lock := flock.New(lockPath)

	locked, err := lock.TryLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire process lock: %v\n", err)

		return ExitSystemError
	}

	if !locked {
		fmt.Fprintf(os.Stderr, "Another forge instance is already running\n")

		return ExitGeneralError
	}

	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to release process lock: %v\n", unlockErr)
		}
	}()

	closeLog := setupLogging()
	defer closeLog()

	log.Info("Forge starting")

	app := cli.App()

	ctx := context.Background()
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return ExitGeneralError
	}

	return ExitSuccess
}

// setupLogging sends structured logs to the forge data directory; the
// terminal belongs to the TUI.
func setupLogging() func() {
	if err := os.MkdirAll(paths.DataDir(), 0o755); err != nil {
		return func() {}
	}

	file, err := os.OpenFile(paths.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return func() {}
	}

	log.SetOutput(file)
	log.SetReportTimestamp(true)

	return func() { _ = file.Close() }
}

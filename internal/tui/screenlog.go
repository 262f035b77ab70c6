// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nixforge/forge/internal/paths"
)

const screenLogHeader = "=== Forge Screen Log ===\n"

// ScreenLog mirrors everything shown in the output panes to a plain text
// file, so failures can be inspected after the TUI exits.
type ScreenLog struct {
	file *os.File
	path string
}

// OpenScreenLog truncates and reopens the screen log for this session.
func OpenScreenLog() (*ScreenLog, error) {
	dir := paths.DataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, "screen.log")

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open screen log %s: %w", path, err)
	}

	if _, err := file.WriteString(screenLogHeader); err != nil {
		file.Close()
		return nil, err
	}

	return &ScreenLog{file: file, path: path}, nil
}

// Path returns the log file location.
func (l *ScreenLog) Path() string {
	if l == nil {
		return ""
	}

	return l.path
}

// Write appends one line. Errors are dropped; logging must never break
// the UI.
func (l *ScreenLog) Write(line string) {
	if l == nil || l.file == nil {
		return
	}

	_, _ = l.file.WriteString(line + "\n")
}

// Close flushes and closes the log file.
func (l *ScreenLog) Close() {
	if l == nil || l.file == nil {
		return
	}

	_ = l.file.Close()
	l.file = nil
}

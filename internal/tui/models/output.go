// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/tui/styles"
)

var ansiEscapeRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI removes terminal escape sequences from command output.
func StripANSI(line string) string {
	return ansiEscapeRe.ReplaceAllString(line, "")
}

// Output collects command output lines for display. Bounded buffers keep
// the most recent lines; scroll position follows the tail until the user
// scrolls up.
type Output struct {
	lines []string
	limit int // 0 means unbounded
	// scroll is the index of the first visible line, or -1 to follow the
	// tail.
	scroll int
}

// NewOutput creates a bounded output buffer with the standard size.
func NewOutput() *Output {
	return &Output{limit: commands.OutputBufferSize, scroll: -1}
}

// NewUnboundedOutput creates an output buffer that retains all lines.
func NewUnboundedOutput() *Output {
	return &Output{scroll: -1}
}

// Append adds one line, evicting the oldest line past the limit.
func (o *Output) Append(line string) {
	o.lines = append(o.lines, StripANSI(line))
	if o.limit > 0 && len(o.lines) > o.limit {
		o.lines = o.lines[len(o.lines)-o.limit:]
	}
}

// Lines returns the retained lines.
func (o *Output) Lines() []string {
	return o.lines
}

// Len returns the number of retained lines.
func (o *Output) Len() int {
	return len(o.lines)
}

// ScrollUp moves the viewport up one line and stops following the tail.
func (o *Output) ScrollUp(visible int) {
	if o.scroll < 0 {
		o.scroll = len(o.lines) - visible
	}

	o.scroll--
	if o.scroll < 0 {
		o.scroll = 0
	}
}

// ScrollDown moves the viewport down one line, resuming tail-follow at
// the bottom.
func (o *Output) ScrollDown(visible int) {
	if o.scroll < 0 {
		return
	}

	o.scroll++
	if o.scroll >= len(o.lines)-visible {
		o.scroll = -1
	}
}

// Following reports whether the viewport tracks the newest output.
func (o *Output) Following() bool {
	return o.scroll < 0
}

// Visible returns the window of lines to render for the given height.
func (o *Output) Visible(height int) []string {
	if height <= 0 || len(o.lines) == 0 {
		return nil
	}

	start := o.scroll
	if start < 0 {
		start = len(o.lines) - height
	}

	if start < 0 {
		start = 0
	}

	end := start + height
	if end > len(o.lines) {
		end = len(o.lines)
	}

	return o.lines[start:end]
}

// View renders the output window inside a bordered box, truncating each
// line to the display width.
func (o *Output) View(s *styles.Styles, width, height int) string {
	if height < 1 {
		height = 1
	}

	lineWidth := max(width-6, 10)

	visible := o.Visible(height)

	truncated := make([]string, 0, len(visible))
	for _, line := range visible {
		truncated = append(truncated, runewidth.Truncate(line, lineWidth, "…"))
	}

	body := strings.Join(truncated, "\n")

	box := s.Output
	if width > 4 {
		box = box.Width(width - 2)
	}

	return box.Render(body)
}

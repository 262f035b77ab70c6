// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nixforge/forge/internal/commands"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"\x1b[31mred\x1b[0m", "red"},
		{"\x1b[1;32mbold green\x1b[0m rest", "bold green rest"},
		{"\x1b[2K\x1b[1Gprogress 50%", "progress 50%"},
		{"", ""},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, StripANSI(tt.in))
	}
}

func TestOutputAppendEvictsOldest(t *testing.T) {
	t.Parallel()

	out := NewOutput()
	for i := range commands.OutputBufferSize + 10 {
		out.Append(fmt.Sprintf("line %d", i))
	}

	require.Equal(t, commands.OutputBufferSize, out.Len())
	require.Equal(t, "line 10", out.Lines()[0])
}

func TestUnboundedOutputKeepsEverything(t *testing.T) {
	t.Parallel()

	out := NewUnboundedOutput()
	for i := range 500 {
		out.Append(fmt.Sprintf("line %d", i))
	}

	require.Equal(t, 500, out.Len())
	require.Equal(t, "line 0", out.Lines()[0])
}

func TestOutputAppendStripsEscapes(t *testing.T) {
	t.Parallel()

	out := NewOutput()
	out.Append("\x1b[33mwarning\x1b[0m: something")

	require.Equal(t, []string{"warning: something"}, out.Lines())
}

func TestOutputFollowsTail(t *testing.T) {
	t.Parallel()

	out := NewOutput()
	for i := range 20 {
		out.Append(fmt.Sprintf("line %d", i))
	}

	require.True(t, out.Following())

	visible := out.Visible(5)
	require.Equal(t, []string{"line 15", "line 16", "line 17", "line 18", "line 19"}, visible)
}

func TestOutputScroll(t *testing.T) {
	t.Parallel()

	out := NewOutput()
	for i := range 20 {
		out.Append(fmt.Sprintf("line %d", i))
	}

	out.ScrollUp(5)
	require.False(t, out.Following())
	require.Equal(t, "line 14", out.Visible(5)[0])

	// Scrolling back down to the bottom resumes following.
	out.ScrollDown(5)
	require.True(t, out.Following())

	// Scrolling up never goes past the first line.
	for range 50 {
		out.ScrollUp(5)
	}

	require.Equal(t, "line 0", out.Visible(5)[0])
}

func TestOutputVisibleShortBuffer(t *testing.T) {
	t.Parallel()

	out := NewOutput()
	out.Append("only line")

	require.Equal(t, []string{"only line"}, out.Visible(10))
	require.Nil(t, out.Visible(0))
	require.Nil(t, NewOutput().Visible(10))
}

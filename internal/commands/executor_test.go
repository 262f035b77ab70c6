// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunStreamsOutput(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)

	ok, err := Run(context.Background(), tx, "sh", "-c", "echo one; echo two")
	require.NoError(t, err)
	require.True(t, ok)

	var lines []string

	for _, msg := range drain(tx) {
		require.Equal(t, Stdout, msg.Kind)
		lines = append(lines, msg.Line)
	}

	require.Equal(t, []string{"one", "two"}, lines)
}

func TestRunStderrKind(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)

	ok, err := Run(context.Background(), tx, "sh", "-c", "echo oops >&2")
	require.NoError(t, err)
	require.True(t, ok)

	msgs := drain(tx)
	require.Len(t, msgs, 1)
	require.Equal(t, Stderr, msgs[0].Kind)
	require.Equal(t, "oops", msgs[0].Line)
}

func TestRunNonZeroExitIsNotError(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)

	ok, err := Run(context.Background(), tx, "sh", "-c", "exit 3")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunSpawnFailure(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)

	_, err := Run(context.Background(), tx, "definitely-not-a-command-12345")
	require.Error(t, err)
}

func TestRunWithTimeout(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)

	_, err := RunWithTimeout(context.Background(), tx, 100*time.Millisecond, "sleep", "5")
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")
}

func TestRunTransformed(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)

	transform := func(line string) (string, bool) {
		if strings.Contains(line, "secret") {
			return "", false
		}

		return strings.ToUpper(line), true
	}

	ok, err := RunTransformed(context.Background(), tx, transform, "sh", "-c", "echo keep; echo secret")
	require.NoError(t, err)
	require.True(t, ok)

	msgs := drain(tx)
	require.Len(t, msgs, 1)
	require.Equal(t, "KEEP", msgs[0].Line)
}

func TestRunCapture(t *testing.T) {
	t.Parallel()

	ok, stdout, stderr, err := RunCapture(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "out\n", stdout)
	require.Equal(t, "err\n", stderr)

	ok, _, _, err = RunCapture(context.Background(), "sh", "-c", "exit 1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCommandExists(t *testing.T) {
	t.Parallel()

	require.True(t, CommandExists(context.Background(), "sh"))
	require.False(t, CommandExists(context.Background(), "definitely-not-a-command-12345"))
}

func TestOutputTrimmed(t *testing.T) {
	t.Parallel()

	out, err := Output(context.Background(), "sh", "-c", "echo '  spaced  '")
	require.NoError(t, err)
	require.Equal(t, "spaced", out)
}

// A command that outlives the drain bound must still deliver its whole
// tail, including the final line error classification depends on.
func TestRunKeepsTailOfLongCommands(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)

	var (
		count int
		last  string
	)

	collected := make(chan struct{})
	go func() {
		defer close(collected)

		for msg := range tx {
			count++
			last = msg.Line
		}
	}()

	ok, err := Run(context.Background(), tx, "sh", "-c", "sleep 6; seq 1 50000; echo FINAL_ERROR_LINE")
	require.NoError(t, err)
	require.True(t, ok)

	close(tx)
	<-collected

	require.Equal(t, 50001, count)
	require.Equal(t, "FINAL_ERROR_LINE", last)
}

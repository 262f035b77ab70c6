// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drain(tx chan Message) []Message {
	var msgs []Message

	for {
		select {
		case msg := <-tx:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestRunnerMessages(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)
	r := NewRunner(context.Background(), tx)

	r.Out("hello")
	r.Outf("value: %d", 42)
	r.Err("oops")
	r.StepComplete(StepFlakeUpdate)
	r.StepSkipped(StepBrowser)
	r.Done(true)

	msgs := drain(tx)
	require.Len(t, msgs, 6)

	require.Equal(t, Message{Kind: Stdout, Line: "hello"}, msgs[0])
	require.Equal(t, Message{Kind: Stdout, Line: "value: 42"}, msgs[1])
	require.Equal(t, Message{Kind: Stderr, Line: "oops"}, msgs[2])
	require.Equal(t, Message{Kind: StepComplete, Step: StepFlakeUpdate}, msgs[3])
	require.Equal(t, Message{Kind: StepSkipped, Step: StepBrowser}, msgs[4])
	require.Equal(t, Message{Kind: Done, Success: true}, msgs[5])
}

func TestRunnerStepFailed(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)
	r := NewRunner(context.Background(), tx)

	r.StepFailed(StepRebuild, "error: builder for '/nix/store/x-pkg.drv' failed", "Rebuild")

	msgs := drain(tx)
	require.Len(t, msgs, 1)
	require.Equal(t, StepFailed, msgs[0].Kind)
	require.Equal(t, StepRebuild, msgs[0].Step)
	require.NotNil(t, msgs[0].Err)
	require.Equal(t, "Nix build failed", msgs[0].Err.Summary)
}

func TestRunnerHeaderFooter(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)
	r := NewRunner(context.Background(), tx)

	r.Header("NixOS System Update")
	r.Footer()

	msgs := drain(tx)
	require.NotEmpty(t, msgs)

	var sawTitle bool

	for _, msg := range msgs {
		require.Equal(t, Stdout, msg.Kind)

		if msg.Line == "  NixOS System Update" {
			sawTitle = true
		}
	}

	require.True(t, sawTitle)
}

func TestRunnerSendHonorsCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered channel with no reader: send must not block once the
	// context is cancelled.
	tx := make(chan Message)
	r := NewRunner(ctx, tx)

	done := make(chan struct{})

	go func() {
		r.Out("dropped")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked after context cancellation")
	}
}

func TestSpawnEmitsDoneOnFailure(t *testing.T) {
	t.Parallel()

	tx := make(chan Message, ChannelSize)

	Spawn(context.Background(), tx, "Status", StepStatus, func(r *Runner) error {
		r.Out("working")

		return &ParsedError{Summary: "boom"}
	})

	deadline := time.After(2 * time.Second)

	var msgs []Message

	for {
		select {
		case msg := <-tx:
			msgs = append(msgs, msg)
			if msg.Kind == Done {
				require.False(t, msg.Success)

				return
			}
		case <-deadline:
			t.Fatalf("no Done message, got %v", msgs)
		}
	}
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShouldNotifyNoUpdates(t *testing.T) {
	t.Parallel()

	state := &State{}
	require.False(t, state.ShouldNotify(&UpdateStatus{}))
}

func TestShouldNotifyNewConfigCommit(t *testing.T) {
	t.Parallel()

	state := &State{}
	status := &UpdateStatus{ConfigUpdates: []CommitInfo{{Hash: "abc123", Message: "fix boot"}}}

	require.True(t, state.ShouldNotify(status))

	state.MarkNotified(status)
	require.False(t, state.ShouldNotify(status))

	// A newer head commit triggers again.
	status.ConfigUpdates = append([]CommitInfo{{Hash: "def456", Message: "more"}}, status.ConfigUpdates...)
	require.True(t, state.ShouldNotify(status))
}

func TestShouldNotifyAppUpdates(t *testing.T) {
	t.Parallel()

	state := &State{}
	status := &UpdateStatus{AppUpdates: true}

	require.True(t, state.ShouldNotify(status))

	state.MarkNotified(status)
	require.False(t, state.ShouldNotify(status))
	require.NotNil(t, state.LastCheck)

	// After a restore the flag resets and the next update notifies again.
	state.ClearAppNotification()
	require.True(t, state.ShouldNotify(status))
}

func TestShouldNotifyFlakeInputs(t *testing.T) {
	t.Parallel()

	state := &State{}
	status := &UpdateStatus{FlakeUpdates: []string{"nixpkgs"}}

	require.True(t, state.ShouldNotify(status))

	state.MarkNotified(status)
	require.False(t, state.ShouldNotify(status))

	status.FlakeUpdates = []string{"nixpkgs", "home-manager"}
	require.True(t, state.ShouldNotify(status))
}

func TestMarkNotifiedTracksCurrentStatus(t *testing.T) {
	t.Parallel()

	state := &State{}
	state.MarkNotified(&UpdateStatus{AppUpdates: true, FlakeUpdates: []string{"nixpkgs"}})

	// Re-marking with an empty status clears the snapshot, so updates
	// that reappear after being applied notify again.
	state.MarkNotified(&UpdateStatus{})
	require.False(t, state.LastNotified.AppUpdates)
	require.Empty(t, state.LastNotified.FlakeInputs)
	require.True(t, state.ShouldNotify(&UpdateStatus{AppUpdates: true}))
}

func TestUpdateStatusHasUpdates(t *testing.T) {
	t.Parallel()

	require.False(t, (&UpdateStatus{}).HasUpdates())
	require.True(t, (&UpdateStatus{AppUpdates: true}).HasUpdates())
	require.True(t, (&UpdateStatus{FlakeUpdates: []string{"nixpkgs"}}).HasUpdates())
	require.True(t, (&UpdateStatus{ConfigUpdates: []CommitInfo{{Hash: "a"}}}).HasUpdates())
}

func TestUpdateStatusSummary(t *testing.T) {
	t.Parallel()

	status := &UpdateStatus{
		ConfigUpdates: []CommitInfo{{Hash: "a"}, {Hash: "b"}},
		AppUpdates:    true,
		FlakeUpdates:  []string{"nixpkgs", "home-manager"},
	}

	summary := status.Summary()
	require.Contains(t, summary, "2 config commits available")
	require.Contains(t, summary, "App profiles updated")
	require.Contains(t, summary, "Flake inputs: nixpkgs, home-manager")

	single := &UpdateStatus{ConfigUpdates: []CommitInfo{{Hash: "a"}}}
	require.Equal(t, "- 1 config commit available", single.Summary())
}

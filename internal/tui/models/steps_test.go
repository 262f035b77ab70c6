// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nixforge/forge/internal/commands"
)

func updateStepNames() []string {
	return []string{
		"Pulling configuration updates",
		"Updating flake inputs",
		"Rebuilding system",
		"Comparing packages",
		"Updating Claude Code",
		"Updating Codex CLI",
		"Checking browser profiles",
	}
}

func TestNewStepListFirstRunning(t *testing.T) {
	t.Parallel()

	list := NewStepList(updateStepNames()...)
	steps := list.Steps()

	require.Len(t, steps, 7)
	require.Equal(t, StepRunning, steps[0].Status)

	for _, step := range steps[1:] {
		require.Equal(t, StepPending, step.Status)
	}
}

func TestStepMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		displayName string
		key         string
		want        bool
	}{
		{"Pulling configuration updates", commands.StepPull, true},
		{"Updating flake inputs", commands.StepFlakeUpdate, true},
		{"Rebuilding system", commands.StepRebuild, true},
		{"Comparing packages", commands.StepPackages, true},
		{"Updating Claude Code", commands.StepClaude, true},
		{"Checking browser profiles", commands.StepBrowser, true},
		{"Rebuilding system", commands.StepFlakeUpdate, false},
		{"Updating flake inputs", commands.StepRebuild, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, stepMatches(tt.displayName, tt.key),
			"stepMatches(%q, %q)", tt.displayName, tt.key)
	}
}

func TestStepListApplyAdvances(t *testing.T) {
	t.Parallel()

	list := NewStepList(updateStepNames()...)

	require.True(t, list.Apply(commands.Message{Kind: commands.StepComplete, Step: commands.StepPull}))

	steps := list.Steps()
	require.Equal(t, StepComplete, steps[0].Status)
	require.Equal(t, StepRunning, steps[1].Status)

	require.True(t, list.Apply(commands.Message{Kind: commands.StepSkipped, Step: commands.StepFlakeUpdate}))
	require.Equal(t, StepSkipped, list.Steps()[1].Status)
	require.Equal(t, StepRunning, list.Steps()[2].Status)
}

func TestStepListApplyOutOfOrder(t *testing.T) {
	t.Parallel()

	list := NewStepList(updateStepNames()...)

	// A later step completes while an earlier one is still running.
	require.True(t, list.Apply(commands.Message{Kind: commands.StepComplete, Step: commands.StepClaude}))
	require.Equal(t, StepComplete, list.Steps()[4].Status)
	require.Equal(t, StepRunning, list.Steps()[0].Status)
}

func TestStepListApplyFailed(t *testing.T) {
	t.Parallel()

	list := NewStepList(updateStepNames()...)
	require.False(t, list.Failed())

	require.True(t, list.Apply(commands.Message{Kind: commands.StepFailed, Step: commands.StepPull}))
	require.True(t, list.Failed())
	require.Equal(t, StepFailed, list.Steps()[0].Status)
}

func TestStepListApplyIgnoresNonStepMessages(t *testing.T) {
	t.Parallel()

	list := NewStepList(updateStepNames()...)

	require.False(t, list.Apply(commands.Message{Kind: commands.Stdout, Line: "hello"}))
	require.False(t, list.Apply(commands.Message{Kind: commands.Done, Success: true}))
	require.False(t, list.Apply(commands.Message{Kind: commands.StepComplete, Step: "nonexistent"}))
}

func TestStepListFinishPending(t *testing.T) {
	t.Parallel()

	list := NewStepList(updateStepNames()...)
	list.Apply(commands.Message{Kind: commands.StepComplete, Step: commands.StepPull})
	list.FinishPending()

	steps := list.Steps()
	require.Equal(t, StepComplete, steps[0].Status)

	for _, step := range steps[1:] {
		require.Equal(t, StepSkipped, step.Status)
	}
}

func TestStepStatusString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pending", StepPending.String())
	require.Equal(t, "running", StepRunning.String())
	require.Equal(t, "complete", StepComplete.String())
	require.Equal(t, "failed", StepFailed.String())
	require.Equal(t, "skipped", StepSkipped.String())
}

func createHostStepNames() []string {
	return []string{
		"Creating host directory",
		"Generating hardware configuration",
		"Creating host configuration",
		"Creating disko configuration",
		"Updating flake.nix",
		"Generating host metadata",
	}
}

// Every key the create-host runner emits must land on its display row in
// order; an unmatched key would leave the cursor stuck and FinishPending
// would skip a step that actually completed.
func TestStepListCreateHostKeysAllMatch(t *testing.T) {
	t.Parallel()

	list := NewStepList(createHostStepNames()...)

	keys := []string{
		commands.StepHost,
		commands.StepHardware,
		commands.StepHostConfig,
		commands.StepDisko,
		commands.StepFlakeUpdate,
		commands.StepMetadata,
	}

	for i, key := range keys {
		require.True(t, list.Apply(commands.Message{Kind: commands.StepComplete, Step: key}),
			"key %q not consumed", key)
		require.Equal(t, StepComplete, list.Steps()[i].Status, "step %d after key %q", i, key)
	}

	list.FinishPending()

	for _, step := range list.Steps() {
		require.Equal(t, StepComplete, step.Status, step.Name)
	}
}

func TestStepListInstallFlakesKeyMatches(t *testing.T) {
	t.Parallel()

	require.True(t, stepMatches("Enabling Nix flakes", commands.StepFlakes))
	require.False(t, stepMatches("Updating flake.nix", commands.StepFlakes))
	require.True(t, stepMatches("Updating flake.nix", commands.StepFlakeUpdate))
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleFlakeLock = `{
  "nodes": {
    "root": {
      "inputs": {"nixpkgs": "nixpkgs"}
    },
    "nixpkgs": {
      "locked": {"owner": "NixOS", "repo": "nixpkgs", "rev": "aaa111", "type": "github"},
      "original": {"ref": "nixos-unstable"}
    },
    "home-manager": {
      "locked": {"owner": "nix-community", "repo": "home-manager", "rev": "bbb222", "type": "github"}
    },
    "local-overlay": {
      "locked": {"type": "path", "rev": ""}
    },
    "tarball-input": {
      "locked": {"type": "tarball", "rev": "ccc333"}
    }
  }
}`

func parseLock(t *testing.T) *flakeLock {
	t.Helper()

	var lock flakeLock
	require.NoError(t, json.Unmarshal([]byte(sampleFlakeLock), &lock))

	return &lock
}

func TestExtractGitHubInputsAll(t *testing.T) {
	t.Parallel()

	inputs := extractGitHubInputs(parseLock(t), nil)
	require.Len(t, inputs, 2)

	byName := make(map[string]flakeInput, len(inputs))
	for _, input := range inputs {
		byName[input.Name] = input
	}

	nixpkgs := byName["nixpkgs"]
	require.Equal(t, "NixOS", nixpkgs.Owner)
	require.Equal(t, "aaa111", nixpkgs.CurrentRev)
	require.Equal(t, "nixos-unstable", nixpkgs.Branch)

	// No original ref falls back to the known default branch.
	hm := byName["home-manager"]
	require.Equal(t, "master", hm.Branch)
}

func TestExtractGitHubInputsPriorityFilter(t *testing.T) {
	t.Parallel()

	inputs := extractGitHubInputs(parseLock(t), []string{"nixpkgs"})
	require.Len(t, inputs, 1)
	require.Equal(t, "nixpkgs", inputs[0].Name)

	inputs = extractGitHubInputs(parseLock(t), []string{"no-such-input"})
	require.Empty(t, inputs)
}

func TestDefaultBranchForRepo(t *testing.T) {
	t.Parallel()

	require.Equal(t, "nixos-unstable", defaultBranchForRepo("NixOS", "nixpkgs"))
	require.Equal(t, "master", defaultBranchForRepo("nix-community", "home-manager"))
	require.Equal(t, "main", defaultBranchForRepo("someone", "something"))
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStderrGitHubAPI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		stderr     string
		summary    string
		detail     string
		suggestion string
	}{
		{
			name:    "rate limit",
			stderr:  "warning: unable to download: HTTP error 403",
			summary: "GitHub API rate limit exceeded",
		},
		{
			name:    "gateway timeout",
			stderr:  "error: unable to download 'https://api.github.com/...': HTTP error 504",
			summary: "GitHub API timeout (HTTP 504)",
		},
		{
			name:    "not found with repo",
			stderr:  "error: HTTP error 404 fetching github:NixOS/nixpkgs",
			summary: "GitHub repository not found",
			detail:  "Repository: NixOS/nixpkgs",
		},
		{
			name:    "auth failure",
			stderr:  "HTTP error 401",
			summary: "GitHub authentication failed",
		},
		{
			name:    "unexpected code",
			stderr:  "HTTP error 500",
			summary: "GitHub API error (HTTP 500)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parsed := ParseStderr(tt.stderr, ErrorContext{Operation: "Update"})
			require.Equal(t, tt.summary, parsed.Summary)

			if tt.detail != "" {
				require.Equal(t, tt.detail, parsed.Detail)
			}
		})
	}
}

func TestParseStderrNetwork(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stderr  string
		summary string
	}{
		{"fatal: Could not resolve host: github.com", "DNS resolution failed"},
		{"curl: (7) connection refused", "Connection refused"},
		{"ssh: connect to host: Connection timed out", "Connection timed out"},
		{"Network is unreachable", "Network unreachable"},
		{"no route to host", "Cannot reach host"},
	}

	for _, tt := range tests {
		parsed := ParseStderr(tt.stderr, ErrorContext{Operation: "Update"})
		require.Equal(t, tt.summary, parsed.Summary)
	}
}

func TestParseStderrNixEval(t *testing.T) {
	t.Parallel()

	stderr := "error: undefined variable 'foo'\n       at /etc/nixos/hosts/desktop/default.nix:42:7:\n"

	parsed := ParseStderr(stderr, ErrorContext{Operation: "Rebuild"})
	require.Equal(t, "Nix evaluation error", parsed.Summary)
	require.Contains(t, parsed.Detail, "undefined variable 'foo'")
	require.Contains(t, parsed.Detail, "/etc/nixos/hosts/desktop/default.nix:42")
}

func TestParseStderrNixBuild(t *testing.T) {
	t.Parallel()

	stderr := "error: builder for '/nix/store/abc123-firefox-146.0.drv' failed with exit code 1"

	parsed := ParseStderr(stderr, ErrorContext{Operation: "Rebuild"})
	require.Equal(t, "Nix build failed", parsed.Summary)
	require.Equal(t, "Failed: abc123-firefox-146.0", parsed.Detail)
}

func TestParseStderrGit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stderr  string
		summary string
	}{
		{"git@github.com: Permission denied (publickey).", "SSH authentication failed"},
		{"fatal: not a git repository (or any of the parent directories)", "Not a git repository"},
		{"fatal: Could not read from remote repository.", "Git remote access failed"},
		{"CONFLICT (content): Merge conflict in flake.nix", "Git merge conflict"},
		{"error: Your local changes would be overwritten by merge", "Uncommitted local changes"},
	}

	for _, tt := range tests {
		parsed := ParseStderr(tt.stderr, ErrorContext{Operation: "Update"})
		require.Equal(t, tt.summary, parsed.Summary)
	}
}

func TestParseStderrPermission(t *testing.T) {
	t.Parallel()

	parsed := ParseStderr("mkdir: cannot create directory: permission denied: /etc/nixos", ErrorContext{Operation: "Install"})
	require.Equal(t, "Permission denied", parsed.Summary)
	require.Equal(t, "/etc/nixos", parsed.Detail)
}

func TestParseStderrGeneric(t *testing.T) {
	t.Parallel()

	parsed := ParseStderr("error: something odd happened", ErrorContext{Operation: "Update"})
	require.Equal(t, "Update failed", parsed.Summary)
	require.Equal(t, "something odd happened", parsed.Detail)

	parsed = ParseStderr("\n\nsome plain line\n", ErrorContext{Operation: "Backup"})
	require.Equal(t, "Backup failed", parsed.Summary)
	require.Equal(t, "some plain line", parsed.Detail)

	parsed = ParseStderr("", ErrorContext{Operation: "Backup"})
	require.Equal(t, "Backup failed", parsed.Summary)
	require.Empty(t, parsed.Detail)
}

func TestParsedErrorError(t *testing.T) {
	t.Parallel()

	err := &ParsedError{Summary: "Nix build failed", Detail: "Failed: foo.drv"}
	require.Equal(t, "Nix build failed: Failed: foo.drv", err.Error())

	err = &ParsedError{Summary: "Connection refused"}
	require.Equal(t, "Connection refused", err.Error())
}

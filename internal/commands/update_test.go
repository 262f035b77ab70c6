// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionChanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		oldV string
		newV string
		want bool
	}{
		{"same semver", "1.2.3", "1.2.3", false},
		{"different patch", "1.2.3", "1.2.4", true},
		{"leading v equal", "v2.0.0", "2.0.0", false},
		{"empty old", "", "1.0.0", false},
		{"empty new", "1.0.0", "", false},
		{"unparseable equal", "nightly", "nightly", false},
		{"unparseable different", "nightly-a", "nightly-b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, versionChanged(tt.oldV, tt.newV))
		})
	}
}

func TestShortRev(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc1234", shortRev("abc1234def5678"))
	require.Equal(t, "abc", shortRev("abc"))
	require.Equal(t, "", shortRev(""))
}

func TestCleanVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"2.1.0 (Claude Code)", "2.1.0"},
		{"0.42.0 (Codex)", "0.42.0"},
		{"1.0.0\nextra output", "1.0.0"},
		{"  1.0.0  ", "1.0.0"},
		{"", ""},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, cleanVersion(tt.in))
	}
}

func TestParseNvdUpdateLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want PackageChange
		ok   bool
	}{
		{
			name: "simple update",
			line: "[U.]  #015  firefox    146.0 -> 146.0.1",
			want: PackageChange{Name: "firefox", OldVersion: "146.0", NewVersion: "146.0.1"},
			ok:   true,
		},
		{
			name: "multiple old versions",
			line: "[U*]  #042  python3    3.12.1, 3.12.2 -> 3.12.3",
			want: PackageChange{Name: "python3", OldVersion: "3.12.2", NewVersion: "3.12.3"},
			ok:   true,
		},
		{
			name: "multiple new versions keeps first",
			line: "[U.]  #007  glibc    2.39 -> 2.40, 2.40-dev",
			want: PackageChange{Name: "glibc", OldVersion: "2.39", NewVersion: "2.40"},
			ok:   true,
		},
		{name: "no arrow", line: "[A.]  #001  newpkg  1.0", ok: false},
		{name: "no hash", line: "firefox 1.0 -> 2.0", ok: false},
		{name: "empty", line: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			change, ok := parseNvdUpdateLine(tt.line)
			require.Equal(t, tt.ok, ok)

			if tt.ok {
				require.Equal(t, tt.want, change)
			}
		})
	}
}

func TestParseNvdOutput(t *testing.T) {
	t.Parallel()

	stdout := `<<< /nix/var/nix/profiles/system-41-link
>>> /nix/var/nix/profiles/system-42-link
Version changes:
[U.]  #015  firefox    146.0 -> 146.0.1
[U.]  #023  linux      6.12.1 -> 6.12.4
Added packages:
[A.]  #001  newtool  1.0
Closure size: 2478 -> 2481 (8 paths added, 5 paths removed).
`

	result := parseNvdOutput(stdout, nil)
	require.Len(t, result.Changes, 2)
	require.Equal(t, "firefox", result.Changes[0].Name)
	require.Equal(t, "linux", result.Changes[1].Name)
	require.Equal(t, "2478 -> 2481 (8 paths added, 5 paths removed)", result.ClosureSummary)
}

func TestDiffFlakeLocks(t *testing.T) {
	t.Parallel()

	oldLock := []byte(`{
  "nodes": {
    "root": {},
    "nixpkgs": {
      "locked": {"owner": "NixOS", "repo": "nixpkgs", "rev": "aaaa111122223333", "type": "github"}
    },
    "home-manager": {
      "locked": {"owner": "nix-community", "repo": "home-manager", "rev": "cccc1111", "type": "github"}
    },
    "localdir": {
      "locked": {"type": "path", "rev": ""}
    }
  }
}`)

	newLock := []byte(`{
  "nodes": {
    "root": {},
    "nixpkgs": {
      "locked": {"owner": "NixOS", "repo": "nixpkgs", "rev": "bbbb444455556666", "type": "github"}
    },
    "home-manager": {
      "locked": {"owner": "nix-community", "repo": "home-manager", "rev": "cccc1111", "type": "github"}
    },
    "brandnew": {
      "locked": {"owner": "foo", "repo": "bar", "rev": "dddd2222", "type": "github"}
    }
  }
}`)

	changes, err := diffFlakeLocks(oldLock, newLock)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	change := changes[0]
	require.Equal(t, "nixpkgs", change.Name)
	require.Equal(t, "NixOS", change.Owner)
	require.Equal(t, "aaaa111122223333", change.OldRev)
	require.Equal(t, "bbbb444455556666", change.NewRev)
	require.Equal(t, "https://github.com/NixOS/nixpkgs/compare/aaaa111...bbbb444", change.CompareURL)
}

func TestDiffFlakeLocksMalformed(t *testing.T) {
	t.Parallel()

	_, err := diffFlakeLocks([]byte("not json"), []byte("{}"))
	require.Error(t, err)

	_, err = diffFlakeLocks([]byte("{}"), []byte("not json"))
	require.Error(t, err)
}

func TestPendingUpdatesHasUpdates(t *testing.T) {
	t.Parallel()

	var nilPending *PendingUpdates

	require.False(t, nilPending.HasUpdates())
	require.False(t, (&PendingUpdates{}).HasUpdates())
	require.True(t, (&PendingUpdates{NixosConfig: true}).HasUpdates())
	require.True(t, (&PendingUpdates{AppProfiles: true}).HasUpdates())
}

func TestFilterUpdateOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want string
		keep bool
	}{
		{"plain line kept", "updating lock file", "updating lock file", true},
		{"indented nix line kept", "  warning: Git tree is dirty", "  warning: Git tree is dirty", true},
		{"html dropped", "<html><body>502 Bad Gateway</body></html>", "", false},
		{"html tag dropped", "  </div>", "", false},
		{"json body dropped", `{"documentation_url": "https://docs.github.com"}`, "", false},
		{"json array dropped", `["a", "b"]`, "", false},
		{"closing brace dropped", "}", "", false},
		{"css property dropped", "font-family: sans-serif;", "", false},
		{"json message extracted", `{"message": "API rate limit exceeded", "status": 403}`, "API rate limit exceeded", true},
		{"message amid noise extracted", `  "message" : "Bad credentials",`, "Bad credentials", true},
		{"empty line kept", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, keep := filterUpdateOutput(tc.line)
			require.Equal(t, tc.keep, keep)
			require.Equal(t, tc.want, got)
		})
	}
}

func writeShim(t *testing.T, dir, name, script string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+script+"\n"), 0o755))
}

// A failed rebuild must not abort the run: packages, CLI tools and browser
// steps still report, and the operation ends with a failed Done.
func TestRunUpdateRebuildFailureContinues(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	shims := filepath.Join(home, "bin")
	require.NoError(t, os.MkdirAll(shims, 0o755))
	t.Setenv("PATH", shims+":"+os.Getenv("PATH"))

	flakeDir := filepath.Join(home, "nixos-config")
	require.NoError(t, os.MkdirAll(filepath.Join(flakeDir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(flakeDir, "flake.nix"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(flakeDir, "flake.lock"), []byte(`{"nodes":{"root":{}}}`), 0o644))

	writeShim(t, shims, "git", "exit 0")
	// Touch the lock so the hash changes and the rebuild step runs; the
	// appended newline keeps the JSON diffable without network fetches.
	writeShim(t, shims, "nix", `echo "updating lock file"; printf '\n' >> "$3/flake.lock"`)
	writeShim(t, shims, "sudo", `echo "builder for '/nix/store/abc-sys.drv' failed" >&2; exit 1`)

	tx := make(chan Message, ChannelSize)

	var msgs []Message

	collected := make(chan struct{})
	go func() {
		defer close(collected)

		for msg := range tx {
			msgs = append(msgs, msg)
		}
	}()

	r := NewRunner(context.Background(), tx)
	require.NoError(t, runUpdate(r))

	close(tx)
	<-collected

	type event struct {
		kind MessageKind
		step string
	}

	var events []event

	for _, msg := range msgs {
		switch msg.Kind {
		case StepComplete, StepSkipped, StepFailed, Done:
			events = append(events, event{msg.Kind, msg.Step})
		}
	}

	require.Equal(t, []event{
		{StepComplete, StepPull},
		{StepComplete, StepFlakeUpdate},
		{StepFailed, StepRebuild},
		{StepComplete, StepPackages},
		{StepSkipped, StepClaude},
		{StepSkipped, StepCodex},
		{StepSkipped, StepBrowser},
		{Done, ""},
	}, events)

	last := msgs[len(msgs)-1]
	require.Equal(t, Done, last.Kind)
	require.False(t, last.Success)

	var lines []string
	for _, msg := range msgs {
		if msg.Kind == Stdout {
			lines = append(lines, msg.Line)
		}
	}

	require.Contains(t, lines, "  System:      Rebuild failed")
}

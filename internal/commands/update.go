// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	goversion "github.com/hashicorp/go-version"

	"github.com/nixforge/forge/internal/paths"
)

var (
	jsonMessageRe = regexp.MustCompile(`"message"\s*:\s*"([^"]+)"`)
	cssPropertyRe = regexp.MustCompile(`^[a-z-]+\s*:\s*[^;{}]+;$`)
)

// filterUpdateOutput drops lines that are noise when a binary cache or
// API endpoint misbehaves mid-update: HTML error pages, CSS fragments
// and raw JSON bodies. A JSON error payload is reduced to its message
// field so the user sees why the request failed.
func filterUpdateOutput(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)

	if m := jsonMessageRe.FindStringSubmatch(trimmed); m != nil {
		return m[1], true
	}

	switch {
	case strings.HasPrefix(trimmed, "<"):
		return "", false
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "}"),
		strings.HasPrefix(trimmed, "["), strings.HasPrefix(trimmed, "]"):
		return "", false
	case cssPropertyRe.MatchString(trimmed):
		return "", false
	}

	return line, true
}

// updateSummary accumulates results across all update steps for the
// final report.
type updateSummary struct {
	FlakeChanges   []FlakeInputChange
	PackageChanges []PackageChange
	ClosureSummary string
	RebuildFailed  bool
	RebuildSkipped bool
	ClaudeOld      string
	ClaudeNew      string
	CodexOld       string
	CodexNew       string
	BrowserStatus  string
	ShellRestarted string
}

// StartUpdate launches the system update runner in the background.
func StartUpdate(ctx context.Context, tx chan<- Message) {
	Spawn(ctx, tx, "Update", "Update", runUpdate)
}

func runUpdate(r *Runner) error {
	summary := &updateSummary{}

	flakeDir := paths.NixosConfigDir()
	if flakeDir == "" {
		flakeDir = "."
	}

	hostname, err := Output(r.Context(), "hostname")
	if err != nil || hostname == "" {
		log.Warn("could not get hostname, using localhost")
		hostname = "localhost"
	}

	r.Header("NixOS System Update")

	// Step 0: pull configuration commits when the flake dir is a checkout.
	if fileExists(flakeDir + "/.git") {
		ok, _, _, err := RunCapture(r.Context(), "git", "-C", flakeDir, "pull", "--ff-only")
		if err == nil && ok {
			r.Out("  ✓ Pulling configuration updates")
			r.StepComplete(StepPull)
		} else {
			r.Out("  ✗ Pulling configuration updates")
			r.StepSkipped(StepPull)
		}
	} else {
		r.Out("  - Configuration is not a git checkout")
		r.StepSkipped(StepPull)
	}

	lockBefore := flakeLockHash(r.Context(), flakeDir)
	saveFlakeLockBackup(r.Context(), flakeDir)

	// Step 1: update flake inputs.
	ok, err := RunTransformed(r.Context(), r.Chan(), filterUpdateOutput, "nix", "flake", "update", flakeDir)
	if err != nil {
		return err
	}

	if !ok {
		r.Out("  ✗ Updating flake inputs")
		r.StepFailed(StepFlakeUpdate, "Flake update failed", "Update")
		r.Done(false)

		return nil
	}

	r.Out("  ✓ Updating flake inputs")
	r.StepComplete(StepFlakeUpdate)

	lockAfter := flakeLockHash(r.Context(), flakeDir)
	needsRebuild := lockBefore != lockAfter

	if needsRebuild {
		changes, err := parseFlakeChanges(r.Context(), flakeDir)
		if err != nil {
			log.Warn("failed to parse flake changes", "err", err)
		} else {
			summary.FlakeChanges = changes
		}
	}

	// Step 2: rebuild the system, skipped when nothing changed.
	if needsRebuild {
		flakeRef := fmt.Sprintf("%s#%s", flakeDir, hostname)

		ok, err := RunTransformed(r.Context(), r.Chan(), filterUpdateOutput, "sudo", "nixos-rebuild", "switch", "--flake", flakeRef)
		if err != nil {
			return err
		}

		if ok {
			r.Out("  ✓ Rebuilding system")
			r.StepComplete(StepRebuild)
		} else {
			r.Out("  ✗ Rebuilding system")
			summary.RebuildFailed = true
			r.StepFailed(StepRebuild, "Rebuild failed", "Update")
		}
	} else {
		r.Out("  - Skipping rebuild (no changes)")
		summary.RebuildSkipped = true
		r.StepSkipped(StepRebuild)
	}

	// Step 3: compare package versions across generations.
	r.Out("")
	r.Out("  Comparing packages...")

	result, err := packageChangesFromHistory(r)
	if err != nil {
		log.Warn("package comparison failed", "err", err)
	} else {
		summary.PackageChanges = result.Changes
		summary.ClosureSummary = result.ClosureSummary
	}

	if len(summary.PackageChanges) == 0 {
		r.Out("  - No package version changes")
	} else {
		r.Outf("  ✓ %d packages updated", len(summary.PackageChanges))
	}

	r.StepComplete(StepPackages)

	// Steps 4-6: CLI tools and app profiles.
	updateClaudeCode(r, summary)
	updateCodexCLI(r, summary)
	checkAppProfiles(r, summary)

	// The running shell may still point at the old store path.
	if restarted, err := restartShellIfNeeded(r); err != nil {
		log.Warn("shell restart check failed", "err", err)
	} else {
		summary.ShellRestarted = restarted
	}

	outputSummary(r, summary)

	r.Done(!summary.RebuildFailed)

	return nil
}

func updateClaudeCode(r *Runner, summary *updateSummary) {
	claudePath := paths.ClaudeCLIPath()
	if !fileExists(claudePath) {
		r.Out("  - Claude Code not installed")
		r.StepSkipped(StepClaude)

		return
	}

	if v, err := Output(r.Context(), claudePath, "--version"); err == nil {
		summary.ClaudeOld = cleanVersion(v)
	}

	ok, _, _, err := RunCapture(r.Context(), claudePath, "update")
	if err == nil && ok {
		r.Out("  ✓ Updating Claude Code")
	} else {
		r.Out("  ✗ Updating Claude Code")
	}

	if v, err := Output(r.Context(), claudePath, "--version"); err == nil {
		summary.ClaudeNew = cleanVersion(v)
	}

	r.StepComplete(StepClaude)
}

func updateCodexCLI(r *Runner, summary *updateSummary) {
	if !fileExists(paths.CodexCLIPath()) {
		r.Out("  - Codex CLI not installed")
		r.StepSkipped(StepCodex)

		return
	}

	summary.CodexOld = npmPackageVersion(r.Context(), "@openai/codex")

	ok, _, _, err := RunCapture(r.Context(), "npm", "update", "-g", "@openai/codex")
	if err == nil && ok {
		r.Out("  ✓ Updating Codex CLI")
	} else {
		r.Out("  ✗ Updating Codex CLI")
	}

	summary.CodexNew = npmPackageVersion(r.Context(), "@openai/codex")

	r.StepComplete(StepCodex)
}

func checkAppProfiles(r *Runner, summary *updateSummary) {
	if !CommandExists(r.Context(), "app-restore") {
		summary.BrowserStatus = "not configured"
		r.Out("  - App backup not configured")
		r.StepSkipped(StepBrowser)

		return
	}

	if fileExists(paths.AppBackupConfigPath()) {
		status, err := browserProfileStatus(r.Context())
		if err != nil {
			status = "unknown"
		}

		summary.BrowserStatus = status
		r.Out("  ✓ Browser profiles up to date")
	} else {
		summary.BrowserStatus = "not configured"
		r.Out("  - Browser profiles not configured")
	}

	r.StepComplete(StepBrowser)
}

// versionChanged reports whether two version strings differ, comparing
// semantically when both parse.
func versionChanged(oldV, newV string) bool {
	if oldV == "" || newV == "" {
		return false
	}

	ov, errOld := goversion.NewVersion(oldV)
	nv, errNew := goversion.NewVersion(newV)

	if errOld == nil && errNew == nil {
		return !ov.Equal(nv)
	}

	return oldV != newV
}

func outputSummary(r *Runner, summary *updateSummary) {
	r.Header("Update Summary")

	if len(summary.FlakeChanges) > 0 {
		r.Out("")
		r.Out("  Flake inputs updated:")

		for _, change := range summary.FlakeChanges {
			r.Outf("    %s: %s → %s", change.Name, shortRev(change.OldRev), shortRev(change.NewRev))

			for _, commit := range change.Commits {
				r.Outf("      %s %s", commit.Hash, commit.Message)
			}

			if change.TotalCommits > len(change.Commits) {
				r.Outf("      ... and %d more commits", change.TotalCommits-len(change.Commits))
			}

			if change.CompareURL != "" {
				r.Outf("      %s", change.CompareURL)
			}
		}
	}

	claudeUpdated := versionChanged(summary.ClaudeOld, summary.ClaudeNew)
	codexUpdated := versionChanged(summary.CodexOld, summary.CodexNew)

	if claudeUpdated || codexUpdated {
		r.Out("")
		r.Out("  CLI tools updated:")

		if claudeUpdated {
			r.Outf("    Claude Code: %s → %s", summary.ClaudeOld, summary.ClaudeNew)
		}

		if codexUpdated {
			r.Outf("    Codex CLI: %s → %s", summary.CodexOld, summary.CodexNew)
		}
	}

	if len(summary.PackageChanges) > 0 {
		r.Out("")
		r.Out("  Packages changed:")

		for _, change := range summary.PackageChanges {
			r.Outf("    %s: %s → %s", change.Name, change.OldVersion, change.NewVersion)
		}
	}

	if summary.ClosureSummary != "" {
		r.Out("")
		r.Outf("  Closure size: %s", summary.ClosureSummary)
	}

	r.Out("")
	r.Out("  ─────────────────────────────────────────")
	r.Out("")

	if summary.RebuildFailed {
		r.Out("  System:      Rebuild failed")
	} else if summary.RebuildSkipped {
		r.Out("  System:      Already up to date")
	}

	if summary.ClaudeOld != "" && !claudeUpdated {
		r.Outf("  Claude Code: %s", summary.ClaudeNew)
	}

	if summary.CodexOld != "" && !codexUpdated {
		r.Outf("  Codex CLI:   %s", summary.CodexNew)
	}

	if summary.BrowserStatus != "" {
		r.Outf("  Browser:     %s", summary.BrowserStatus)
	}

	if summary.ShellRestarted != "" {
		r.Outf("  Shell:       %s restarted", summary.ShellRestarted)
	}

	r.Out("")
	r.Out(separator)
}

func shortRev(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}

	return rev
}

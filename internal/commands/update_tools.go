// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nixforge/forge/internal/paths"
)

// cleanVersion normalizes a CLI --version line by stripping tool labels.
func cleanVersion(v string) string {
	first, _, _ := strings.Cut(v, "\n")
	first = strings.ReplaceAll(first, " (Claude Code)", "")
	first = strings.ReplaceAll(first, " (Codex)", "")

	return strings.TrimSpace(first)
}

// npmPackageVersion returns the globally installed version of a package,
// or "" when it cannot be determined.
func npmPackageVersion(ctx context.Context, pkg string) string {
	ok, stdout, _, err := RunCapture(ctx, "npm", "list", "-g", "--depth=0", pkg)
	if err != nil || !ok {
		log.Debug("npm list failed", "package", pkg, "err", err)

		return ""
	}

	// Lines look like "@openai/codex@1.2.3"; split at the last @ so
	// scoped package names parse correctly.
	for _, line := range strings.Split(stdout, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.Contains(trimmed, pkg) {
			continue
		}

		atPos := strings.LastIndex(trimmed, "@")
		if atPos <= 0 {
			continue
		}

		before := trimmed[:atPos]
		if !strings.Contains(before, pkg) && !strings.HasSuffix(before, pkg) {
			continue
		}

		if version := strings.TrimSpace(trimmed[atPos+1:]); version != "" {
			return version
		}
	}

	log.Debug("could not parse npm package version", "package", pkg)

	return ""
}

// browserProfileStatus compares the local app backup repository against
// its remote.
func browserProfileStatus(ctx context.Context) (string, error) {
	repo := paths.AppBackupDataDir()

	if !fileExists(repo + "/.git") {
		return "not synced", nil
	}

	_, _, _, _ = RunCapture(ctx, "git", "-C", repo, "fetch", "origin")

	_, localHead, _, err := RunCapture(ctx, "git", "-C", repo, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	_, remoteHead, _, err := RunCapture(ctx, "git", "-C", repo, "rev-parse", "origin/main")
	if err != nil {
		remoteHead = ""
	}

	if strings.TrimSpace(localHead) == strings.TrimSpace(remoteHead) {
		return "up to date", nil
	}

	return "updates available", nil
}

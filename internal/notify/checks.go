// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package notify

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nixforge/forge/internal/paths"
)

// CheckNixosConfigUpdates returns the commits on origin/main that are not
// in the local HEAD of the nixos-config repository. A missing repository
// or an unreachable remote yields no updates.
func CheckNixosConfigUpdates(ctx context.Context, timeout time.Duration) ([]CommitInfo, error) {
	configDir := paths.NixosConfigDir()

	if configDir == "" || !fileExists(filepath.Join(configDir, ".git")) {
		return nil, nil
	}

	if !runGit(ctx, timeout, configDir, "fetch", "origin") {
		return nil, nil
	}

	ok, logOutput, err := runGitOutput(ctx, configDir, "log", "HEAD..origin/main", "--pretty=format:%h|%s")
	if err != nil {
		return nil, err
	}

	if !ok || strings.TrimSpace(logOutput) == "" {
		return nil, nil
	}

	var commits []CommitInfo

	for _, line := range strings.Split(logOutput, "\n") {
		if line == "" {
			continue
		}

		hash, message, _ := strings.Cut(line, "|")
		commits = append(commits, CommitInfo{Hash: hash, Message: message})
	}

	return commits, nil
}

// CheckAppUpdates reports whether the app profile repository has remote
// commits not yet pulled locally.
func CheckAppUpdates(ctx context.Context, timeout time.Duration) (bool, error) {
	repo := paths.AppBackupDataDir()

	if repo == "" || !fileExists(filepath.Join(repo, ".git")) {
		return false, nil
	}

	remoteOk, _, err := runGitOutput(ctx, repo, "remote", "get-url", "origin")
	if err != nil || !remoteOk {
		return false, err
	}

	if !runGit(ctx, timeout, repo, "fetch", "origin") {
		return false, nil
	}

	ok, countStr, err := runGitOutput(ctx, repo, "rev-list", "HEAD..origin/main", "--count")
	if err != nil {
		return false, err
	}

	if !ok {
		ok, countStr, err = runGitOutput(ctx, repo, "rev-list", "HEAD..origin/master", "--count")
		if err != nil || !ok {
			return false, err
		}
	}

	count, _ := strconv.Atoi(strings.TrimSpace(countStr))

	return count > 0, nil
}

// runGit executes a git command discarding output, bounded by timeout.
func runGit(ctx context.Context, timeout time.Duration, dir string, args ...string) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	gitArgs := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", gitArgs...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	return cmd.Run() == nil
}

// runGitOutput executes a git command capturing stdout.
func runGitOutput(ctx context.Context, dir string, args ...string) (bool, string, error) {
	gitArgs := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", gitArgs...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, "", nil
		}

		return false, "", err
	}

	return true, string(output), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

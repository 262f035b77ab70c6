// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Commits fetched per changed input, to keep API responses small.
const maxCommitsToFetch = 10

const flakeLockBackupPath = "/tmp/forge-flake.lock.old"

// FlakeInputChange describes one flake input that moved to a new revision.
type FlakeInputChange struct {
	Name         string
	Owner        string
	Repo         string
	OldRev       string
	NewRev       string
	Commits      []Commit
	TotalCommits int
	CompareURL   string
}

type flakeLock struct {
	Nodes map[string]flakeNode `json:"nodes"`
}

type flakeNode struct {
	Locked *lockedInput `json:"locked"`
}

type lockedInput struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Rev        string `json:"rev"`
	SourceType string `json:"type"`
}

type githubCompareResponse struct {
	TotalCommits int `json:"total_commits"`
	Commits      []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
		} `json:"commit"`
	} `json:"commits"`
}

// flakeLockHash returns the sha256 of dir/flake.lock, or "" when absent.
func flakeLockHash(ctx context.Context, dir string) string {
	lockPath := filepath.Join(dir, "flake.lock")
	if !fileExists(lockPath) {
		return ""
	}

	ok, stdout, _, err := RunCapture(ctx, "sha256sum", lockPath)
	if err != nil || !ok {
		return ""
	}

	fields := strings.Fields(stdout)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}

// saveFlakeLockBackup copies flake.lock aside so changes can be diffed
// after the update rewrites it.
func saveFlakeLockBackup(ctx context.Context, dir string) {
	lockPath := filepath.Join(dir, "flake.lock")
	if !fileExists(lockPath) {
		return
	}

	if ok, _, _, err := RunCapture(ctx, "cp", lockPath, flakeLockBackupPath); err != nil || !ok {
		log.Warn("failed to back up flake.lock", "err", err)
	}
}

// parseFlakeChanges diffs the pre-update backup against the current
// flake.lock and annotates each changed GitHub input with its commits.
func parseFlakeChanges(ctx context.Context, dir string) ([]FlakeInputChange, error) {
	lockPath := filepath.Join(dir, "flake.lock")
	if !fileExists(lockPath) || !fileExists(flakeLockBackupPath) {
		return nil, nil
	}

	oldContent, err := os.ReadFile(flakeLockBackupPath)
	if err != nil {
		return nil, err
	}

	newContent, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	changes, err := diffFlakeLocks(oldContent, newContent)
	if err != nil {
		return nil, err
	}

	fetchCommitsForChanges(ctx, changes)

	if err := os.Remove(flakeLockBackupPath); err != nil {
		log.Debug("failed to remove flake.lock backup", "err", err)
	}

	return changes, nil
}

func diffFlakeLocks(oldContent, newContent []byte) ([]FlakeInputChange, error) {
	var oldLock, newLock flakeLock

	if err := json.Unmarshal(oldContent, &oldLock); err != nil {
		return nil, fmt.Errorf("parse old flake.lock: %w", err)
	}

	if err := json.Unmarshal(newContent, &newLock); err != nil {
		return nil, fmt.Errorf("parse new flake.lock: %w", err)
	}

	var changes []FlakeInputChange

	for name, newNode := range newLock.Nodes {
		if name == "root" || newNode.Locked == nil {
			continue
		}

		locked := newNode.Locked
		if locked.SourceType != "github" || locked.Rev == "" || locked.Owner == "" || locked.Repo == "" {
			continue
		}

		oldNode, exists := oldLock.Nodes[name]
		if !exists || oldNode.Locked == nil || oldNode.Locked.Rev == "" {
			continue
		}

		oldRev := oldNode.Locked.Rev
		if oldRev == locked.Rev {
			continue
		}

		changes = append(changes, FlakeInputChange{
			Name:   name,
			Owner:  locked.Owner,
			Repo:   locked.Repo,
			OldRev: oldRev,
			NewRev: locked.Rev,
			CompareURL: fmt.Sprintf("https://github.com/%s/%s/compare/%s...%s",
				locked.Owner, locked.Repo, shortRev(oldRev), shortRev(locked.Rev)),
		})
	}

	return changes, nil
}

// fetchCommitsForChanges fills in commit lists from the GitHub API.
// Failures are logged and leave the change without commits.
func fetchCommitsForChanges(ctx context.Context, changes []FlakeInputChange) {
	client := &http.Client{Timeout: 10 * time.Second}

	for i := range changes {
		commits, total, err := fetchGitHubCommits(ctx, client, &changes[i])
		if err != nil {
			log.Debug("failed to fetch commits",
				"owner", changes[i].Owner, "repo", changes[i].Repo, "err", err)

			continue
		}

		changes[i].Commits = commits
		changes[i].TotalCommits = total
	}
}

func fetchGitHubCommits(ctx context.Context, client *http.Client, change *FlakeInputChange) ([]Commit, int, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/compare/%s...%s",
		change.Owner, change.Repo, change.OldRev, change.NewRev)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("User-Agent", "forge-nixos-tool")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("GitHub API returned %s", resp.Status)
	}

	var compare githubCompareResponse
	if err := json.NewDecoder(resp.Body).Decode(&compare); err != nil {
		return nil, 0, err
	}

	// The API returns commits oldest first; show the newest ones.
	var commits []Commit

	for i := len(compare.Commits) - 1; i >= 0 && len(commits) < maxCommitsToFetch; i-- {
		c := compare.Commits[i]
		firstLine, _, _ := strings.Cut(c.Commit.Message, "\n")

		commits = append(commits, Commit{
			Hash:    shortRev(c.SHA),
			Message: firstLine,
		})
	}

	return commits, compare.TotalCommits, nil
}

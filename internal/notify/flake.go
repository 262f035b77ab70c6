// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nixforge/forge/internal/paths"
)

type flakeLock struct {
	Nodes map[string]flakeNode `json:"nodes"`
}

type flakeNode struct {
	Locked   *lockedInput   `json:"locked"`
	Original *originalInput `json:"original"`
}

type lockedInput struct {
	Owner      string `json:"owner"`
	Repo       string `json:"repo"`
	Rev        string `json:"rev"`
	SourceType string `json:"type"`
}

type originalInput struct {
	Ref string `json:"ref"`
}

type githubBranch struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// flakeInput is one GitHub-pinned input from flake.lock.
type flakeInput struct {
	Name       string
	Owner      string
	Repo       string
	Branch     string
	CurrentRev string
}

// CheckFlakeUpdates reports which flake inputs have moved past their
// pinned revision on GitHub.
func CheckFlakeUpdates(ctx context.Context, cfg *Config) ([]string, error) {
	lockPath := paths.FlakeLockPath()
	if lockPath == "" || !fileExists(lockPath) {
		return nil, nil
	}

	content, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}

	var lock flakeLock
	if err := json.Unmarshal(content, &lock); err != nil {
		return nil, err
	}

	inputs := extractGitHubInputs(&lock, cfg.Inputs.PriorityInputs)
	if len(inputs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeouts.FlakeCheck())
	defer cancel()

	return checkInputsForUpdates(ctx, cfg, inputs), nil
}

// extractGitHubInputs collects the checkable inputs. When priority is
// non-empty only the named inputs are checked.
func extractGitHubInputs(lock *flakeLock, priority []string) []flakeInput {
	var inputs []flakeInput

	for name, node := range lock.Nodes {
		if name == "root" || node.Locked == nil {
			continue
		}

		locked := node.Locked
		if locked.SourceType != "github" || locked.Owner == "" || locked.Repo == "" || locked.Rev == "" {
			continue
		}

		if len(priority) > 0 && !slices.Contains(priority, name) {
			continue
		}

		branch := ""
		if node.Original != nil {
			branch = node.Original.Ref
		}

		if branch == "" {
			branch = defaultBranchForRepo(locked.Owner, locked.Repo)
		}

		inputs = append(inputs, flakeInput{
			Name:       name,
			Owner:      locked.Owner,
			Repo:       locked.Repo,
			Branch:     branch,
			CurrentRev: locked.Rev,
		})
	}

	return inputs
}

// defaultBranchForRepo maps well-known repos to their development branch.
func defaultBranchForRepo(owner, repo string) string {
	switch {
	case owner == "NixOS" && repo == "nixpkgs":
		return "nixos-unstable"
	case owner == "nix-community" && repo == "home-manager":
		return "master"
	default:
		return "main"
	}
}

func checkInputsForUpdates(ctx context.Context, cfg *Config, inputs []flakeInput) []string {
	client := &http.Client{Timeout: cfg.Timeouts.HTTPClient()}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		updates []string
	)

	for _, input := range inputs {
		wg.Add(1)

		go func(input flakeInput) {
			defer wg.Done()

			behind, err := checkSingleInput(ctx, client, input)
			if err != nil {
				log.Debug("flake input check failed", "input", input.Name, "err", err)

				return
			}

			if behind {
				mu.Lock()
				updates = append(updates, input.Name)
				mu.Unlock()
			}
		}(input)
	}

	wg.Wait()

	return updates
}

func checkSingleInput(ctx context.Context, client *http.Client, input flakeInput) (bool, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/branches/%s",
		input.Owner, input.Repo, input.Branch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	req.Header.Set("User-Agent", "forge-notify")

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var branch githubBranch
	if err := json.NewDecoder(resp.Body).Decode(&branch); err != nil {
		return false, err
	}

	return branch.Commit.SHA != input.CurrentRev, nil
}

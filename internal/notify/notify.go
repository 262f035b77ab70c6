// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package notify implements the background update checks shared by the
// interactive tool and the forge-notify daemon. It watches three things:
// the nixos-config repository, the app profile repository and the flake
// inputs pinned in flake.lock.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// CommitInfo is one pending commit in the nixos-config repository.
type CommitInfo struct {
	Hash    string
	Message string
}

// UpdateStatus aggregates the results of all update checks.
type UpdateStatus struct {
	ConfigUpdates []CommitInfo
	AppUpdates    bool
	FlakeUpdates  []string
}

// HasUpdates reports whether any check found something new.
func (s *UpdateStatus) HasUpdates() bool {
	return len(s.ConfigUpdates) > 0 || s.AppUpdates || len(s.FlakeUpdates) > 0
}

// Summary builds the notification body.
func (s *UpdateStatus) Summary() string {
	var lines []string

	if count := len(s.ConfigUpdates); count > 0 {
		plural := "s"
		if count == 1 {
			plural = ""
		}

		lines = append(lines, fmt.Sprintf("- %d config commit%s available", count, plural))
	}

	if s.AppUpdates {
		lines = append(lines, "- App profiles updated")
	}

	if len(s.FlakeUpdates) > 0 {
		lines = append(lines, "- Flake inputs: "+strings.Join(s.FlakeUpdates, ", "))
	}

	return strings.Join(lines, "\n")
}

// CheckAllUpdates runs every check concurrently and collects the results.
// Individual check failures degrade to "no updates" rather than failing
// the whole run.
func CheckAllUpdates(ctx context.Context, cfg *Config) (*UpdateStatus, error) {
	configCh := make(chan []CommitInfo, 1)
	appsCh := make(chan bool, 1)
	flakeCh := make(chan []string, 1)

	go func() {
		commits, err := CheckNixosConfigUpdates(ctx, cfg.Timeouts.GitFetch())
		if err != nil {
			commits = nil
		}

		configCh <- commits
	}()

	go func() {
		pending, err := CheckAppUpdates(ctx, cfg.Timeouts.GitFetch())
		if err != nil {
			pending = false
		}

		appsCh <- pending
	}()

	go func() {
		updates, err := CheckFlakeUpdates(ctx, cfg)
		if err != nil {
			updates = nil
		}

		flakeCh <- updates
	}()

	return &UpdateStatus{
		ConfigUpdates: <-configCh,
		AppUpdates:    <-appsCh,
		FlakeUpdates:  <-flakeCh,
	}, nil
}

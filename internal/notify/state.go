// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package notify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/nixforge/forge/internal/paths"
)

// State tracks what updates have already been notified about, so repeat
// runs stay quiet until something new appears.
type State struct {
	LastCheck    *time.Time    `json:"last_check"`
	LastNotified NotifiedState `json:"last_notified"`
}

// NotifiedState is the snapshot of the last notification sent.
type NotifiedState struct {
	ConfigCommit string   `json:"config_commit,omitempty"`
	AppUpdates   bool     `json:"app_updates"`
	FlakeInputs  []string `json:"flake_inputs"`
}

// LoadState reads the state file, returning an empty state when missing.
func LoadState() (*State, error) {
	path := paths.NotifyStatePath()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}

		return nil, err
	}

	var state State
	if err := json.Unmarshal(content, &state); err != nil {
		return nil, err
	}

	return &state, nil
}

// Save writes the state file, creating its directory when needed.
func (s *State) Save() error {
	path := paths.NotifyStatePath()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	content, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, content, 0o644)
}

// MarkNotified records the current status as notified.
func (s *State) MarkNotified(status *UpdateStatus) {
	now := time.Now().UTC()
	s.LastCheck = &now

	if len(status.ConfigUpdates) > 0 {
		s.LastNotified.ConfigCommit = status.ConfigUpdates[0].Hash
	}

	// Tracking current status rather than latching allows re-notification
	// when updates reappear after being applied.
	s.LastNotified.AppUpdates = status.AppUpdates
	s.LastNotified.FlakeInputs = slices.Clone(status.FlakeUpdates)
}

// ShouldNotify reports whether the status contains anything not covered
// by the last notification.
func (s *State) ShouldNotify(status *UpdateStatus) bool {
	if !status.HasUpdates() {
		return false
	}

	if len(status.ConfigUpdates) > 0 && s.LastNotified.ConfigCommit != status.ConfigUpdates[0].Hash {
		return true
	}

	if status.AppUpdates && !s.LastNotified.AppUpdates {
		return true
	}

	for _, input := range status.FlakeUpdates {
		if !slices.Contains(s.LastNotified.FlakeInputs, input) {
			return true
		}
	}

	return false
}

// ClearAppNotification resets the app update flag after a restore.
func (s *State) ClearAppNotification() {
	s.LastNotified.AppUpdates = false
}

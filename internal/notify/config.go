// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package notify

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

const (
	configSubdir = ".config/forge"
	configFile   = "notify.toml"

	defaultGitFetchSecs   = 10
	defaultFlakeCheckSecs = 15
	defaultHTTPClientSecs = 10

	defaultNotificationTimeoutMs = 10000
)

// Config controls the notifier's timeouts, notification appearance and
// which flake inputs get checked. Loaded from ~/.config/forge/notify.toml
// with defaults for anything unset.
type Config struct {
	Timeouts     TimeoutConfig      `toml:"timeouts"`
	Notification NotificationConfig `toml:"notification"`
	Inputs       InputConfig        `toml:"inputs"`
}

// TimeoutConfig holds per-operation timeouts in seconds.
type TimeoutConfig struct {
	GitFetchSecs   int `toml:"git_fetch_secs"`
	FlakeCheckSecs int `toml:"flake_check_secs"`
	HTTPClientSecs int `toml:"http_client_secs"`
}

// GitFetch returns the git fetch timeout.
func (t TimeoutConfig) GitFetch() time.Duration {
	return time.Duration(t.GitFetchSecs) * time.Second
}

// FlakeCheck returns the overall flake check timeout.
func (t TimeoutConfig) FlakeCheck() time.Duration {
	return time.Duration(t.FlakeCheckSecs) * time.Second
}

// HTTPClient returns the per-request HTTP timeout.
func (t TimeoutConfig) HTTPClient() time.Duration {
	return time.Duration(t.HTTPClientSecs) * time.Second
}

// NotificationConfig controls the desktop notification.
type NotificationConfig struct {
	TimeoutMs int    `toml:"timeout_ms"`
	Urgency   string `toml:"urgency"`
	Icon      string `toml:"icon"`
}

// InputConfig selects which flake inputs to check. An empty list means
// all GitHub inputs in flake.lock.
type InputConfig struct {
	PriorityInputs []string `toml:"priority_inputs"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeouts: TimeoutConfig{
			GitFetchSecs:   defaultGitFetchSecs,
			FlakeCheckSecs: defaultFlakeCheckSecs,
			HTTPClientSecs: defaultHTTPClientSecs,
		},
		Notification: NotificationConfig{
			TimeoutMs: defaultNotificationTimeoutMs,
			Urgency:   "normal",
			Icon:      "software-update-available",
		},
		Inputs: InputConfig{
			PriorityInputs: []string{"nixpkgs"},
		},
	}
}

// LoadConfig reads the configuration file, falling back to defaults when
// the file is missing or unparseable.
func LoadConfig() *Config {
	path := configFilePath()

	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to read notify config, using defaults", "err", err)
		}

		return DefaultConfig()
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(content, cfg); err != nil {
		log.Warn("failed to parse notify config, using defaults", "err", err)

		return DefaultConfig()
	}

	return cfg
}

// Save writes the configuration to its file.
func (c *Config) Save() error {
	path := configFilePath()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	content, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, content, 0o644)
}

func configFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/forge-notify.toml"
	}

	return filepath.Join(home, configSubdir, configFile)
}

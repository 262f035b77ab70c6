// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package paths resolves the on-disk locations forge reads and writes,
// with consistent fallbacks when the home directory is unavailable.
package paths

import (
	"os"
	"path/filepath"
)

const (
	forgeDataSubdir = ".local/share/forge"

	// LogFile is the shared log filename for both binaries.
	LogFile = "forge.log"

	notifyStateFile = "notify-state.json"

	appBackupDataSubdir      = ".local/share/app-backup"
	browserBackupDataLegacy  = ".local/share/browser-backup"
	appBackupConfigSubdir    = ".config/app-backup/config.toml"
	browserBackupConfLegacy  = ".config/browser-backup/config.toml"
	nixosConfigHomeSubdir    = "nixos-config"
	nixosConfigSystem        = "/etc/nixos"
	flakeNix                 = "flake.nix"
	fallbackForgeDataDir     = "/tmp/forge"
	fallbackNotifyStateFile  = "/tmp/forge-notify-state.json"
)

// DataDir returns the forge data directory, falling back to /tmp/forge
// when the home directory cannot be determined.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return fallbackForgeDataDir
	}

	return filepath.Join(home, forgeDataSubdir)
}

// LogPath returns the forge log file path.
func LogPath() string {
	return filepath.Join(DataDir(), LogFile)
}

// NotifyStatePath returns the notification state file path.
func NotifyStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return fallbackNotifyStateFile
	}

	return filepath.Join(home, forgeDataSubdir, notifyStateFile)
}

// NixosConfigDir returns the NixOS configuration directory, preferring
// /etc/nixos when it holds a flake, then ~/nixos-config. Returns "" when
// neither location has a flake.nix.
func NixosConfigDir() string {
	if fileExists(filepath.Join(nixosConfigSystem, flakeNix)) {
		return nixosConfigSystem
	}

	if home, err := os.UserHomeDir(); err == nil {
		homePath := filepath.Join(home, nixosConfigHomeSubdir)
		if fileExists(filepath.Join(homePath, flakeNix)) {
			return homePath
		}
	}

	return ""
}

// FlakeLockPath returns the flake.lock path inside the NixOS config directory.
func FlakeLockPath() string {
	dir := NixosConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, "flake.lock")
}

// AppBackupDataDir returns the app backup repository, preferring the
// app-backup location and falling back to the legacy browser-backup one.
func AppBackupDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	newPath := filepath.Join(home, appBackupDataSubdir)
	if fileExists(filepath.Join(newPath, ".git")) {
		return newPath
	}

	return filepath.Join(home, browserBackupDataLegacy)
}

// AppBackupConfigPath returns the app backup configuration file, preferring
// the app-backup location and falling back to the legacy browser-backup one.
func AppBackupConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	newPath := filepath.Join(home, appBackupConfigSubdir)
	if fileExists(newPath) {
		return newPath
	}

	return filepath.Join(home, browserBackupConfLegacy)
}

// ClaudeCLIPath returns the expected location of the Claude Code binary.
func ClaudeCLIPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".local", "bin", "claude")
}

// CodexCLIPath returns the expected location of the Codex CLI binary.
func CodexCLIPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".local", "bin", "codex")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

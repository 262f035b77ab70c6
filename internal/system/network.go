// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package system

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CheckConnectivity pings github.com once with a short deadline.
func CheckConnectivity() bool {
	return exec.Command("ping", "-c", "1", "-W", "5", "github.com").Run() == nil
}

// Hostname returns the current machine hostname.
func Hostname() (string, error) {
	out, err := exec.Command("hostname").Output()
	if err != nil {
		return "", fmt.Errorf("get hostname: %w", err)
	}

	return strings.TrimSpace(string(out)), nil
}

// IsLiveISO reports whether we are running from a NixOS live ISO.
func IsLiveISO() bool {
	// Read-only Nix store is typical for the ISO.
	if _, err := os.Stat("/nix/.ro-store"); err == nil {
		return true
	}

	// NIXOS_LUSTRATE only exists on installed systems.
	if _, err := os.Stat("/etc/NIXOS_LUSTRATE"); err == nil {
		return false
	}

	// squashfs/tmpfs/overlay root indicates a live system.
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return false
	}

	for _, line := range strings.Split(string(mounts), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[1] == "/" {
			switch fields[2] {
			case "squashfs", "tmpfs", "overlay":
				return true
			}
		}
	}

	return false
}

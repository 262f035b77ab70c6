// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package system

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// HostMetadata is the hardware summary stored in a host's host-info.json.
type HostMetadata struct {
	Cpu *struct {
		Vendor string `json:"vendor"`
		Model  string `json:"model"`
	} `json:"cpu"`
	Gpu *struct {
		Vendor string `json:"vendor"`
		Model  string `json:"model"`
	} `json:"gpu"`
	FormFactor string `json:"form_factor"`
	Ram        string `json:"ram"`
}

// HostConfig is a host discovered in the configuration repository.
type HostConfig struct {
	Name        string
	Description string
	Metadata    *HostMetadata
}

// NewHostConfig accumulates the choices made in the create-host wizard.
// Immutable once the wizard reaches its review step.
type NewHostConfig struct {
	Hostname   string
	Cpu        CpuInfo
	Gpu        GpuInfo
	FormFactor FormFactor
	Disk       DiskInfo
}

// DiscoverHosts scans the first existing hosts/ directory among the known
// config locations and returns the hosts alphabetically.
func DiscoverHosts() []HostConfig {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/root"
	}

	locations := []string{
		"/tmp/nixos-config/hosts",
		filepath.Join(home, "nixos-config", "hosts"),
		"/etc/nixos/hosts",
	}

	var hostsDir string

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			hostsDir = loc

			break
		}
	}

	if hostsDir == "" {
		return nil
	}

	entries, err := os.ReadDir(hostsDir)
	if err != nil {
		return nil
	}

	var hosts []HostConfig

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hostPath := filepath.Join(hostsDir, entry.Name())

		description := "Host configuration"
		if content, err := os.ReadFile(filepath.Join(hostPath, "default.nix")); err == nil {
			description = ParseHostDescription(string(content))
		}

		hosts = append(hosts, HostConfig{
			Name:        entry.Name(),
			Description: description,
			Metadata:    loadHostMetadata(hostPath),
		})
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })

	return hosts
}

func loadHostMetadata(hostPath string) *HostMetadata {
	content, err := os.ReadFile(filepath.Join(hostPath, "host-info.json"))
	if err != nil {
		return nil
	}

	var meta HostMetadata
	if err := json.Unmarshal(content, &meta); err != nil {
		return nil
	}

	return &meta
}

// ParseHostDescription extracts the description from a host default.nix
// leading comment of the form "# hostname - Description".
func ParseHostDescription(content string) string {
	firstLine, _, _ := strings.Cut(content, "\n")
	if strings.HasPrefix(firstLine, "#") {
		if _, after, ok := strings.Cut(firstLine, " - "); ok {
			return strings.TrimSpace(after)
		}
	}

	return "Host configuration"
}

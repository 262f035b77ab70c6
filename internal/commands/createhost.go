// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nixforge/forge/internal/system"
	"github.com/nixforge/forge/internal/templates"
)

// StartCreateHost launches host configuration generation in the background.
func StartCreateHost(ctx context.Context, tx chan<- Message, config *system.NewHostConfig) {
	Spawn(ctx, tx, "Create host", StepHostConfig, func(r *Runner) error {
		return runCreateHost(r, config)
	})
}

func runCreateHost(r *Runner, config *system.NewHostConfig) error {
	// On the live ISO there may be no configuration checkout yet; clone
	// one under /tmp before generating into it.
	if system.IsLiveISO() {
		if _, err := findConfigDir(); err != nil {
			r.Out("Cloning configuration repository...")

			cloneCmd := fmt.Sprintf("git clone %s %s", repoURL, tempConfigDir)

			ok, err := r.Run("nix-shell", "-p", "git", "--run", cloneCmd)
			if err != nil {
				return err
			}

			if !ok {
				return errors.New("failed to clone configuration repository")
			}

			r.StepComplete(StepRepository)
		} else {
			r.StepSkipped(StepRepository)
		}
	}

	configDir, err := findConfigDir()
	if err != nil {
		return err
	}

	r.Outf("Creating host configuration for '%s'...", config.Hostname)

	// Step 1: host directory.
	r.Outf("Creating hosts/%s/...", config.Hostname)

	hostDir := filepath.Join(configDir, "hosts", config.Hostname)
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return fmt.Errorf("create host directory %s: %w", hostDir, err)
	}

	r.StepComplete(StepHost)

	// Step 2: hardware-configuration.nix, generated from the running
	// system when possible, template otherwise.
	r.Out("Generating hardware configuration...")

	hwConfigPath := filepath.Join(hostDir, "hardware-configuration.nix")

	if err := generateHwConfigFromSystem(r, hwConfigPath); err != nil {
		r.Outf("Note: Using template hardware config (%v)", err)

		hwConfig := templates.HardwareConfig(config.Cpu, config.Hostname)
		if err := os.WriteFile(hwConfigPath, []byte(hwConfig), 0o644); err != nil {
			return fmt.Errorf("write hardware config %s: %w", hwConfigPath, err)
		}
	}

	r.StepComplete(StepHardware)

	// Step 3: host default.nix.
	r.Out("Creating host configuration...")

	defaultNixPath := filepath.Join(hostDir, "default.nix")
	if err := os.WriteFile(defaultNixPath, []byte(templates.HostDefaultNix(config)), 0o644); err != nil {
		return fmt.Errorf("write default.nix %s: %w", defaultNixPath, err)
	}

	r.StepComplete(StepHostConfig)

	// Step 4: disko configuration.
	r.Out("Creating disko configuration...")

	diskoPath := filepath.Join(configDir, "modules", "disko", config.Hostname+".nix")
	diskoConfig := templates.DiskoConfig(config.Hostname, config.Disk.Path)

	if err := os.WriteFile(diskoPath, []byte(diskoConfig), 0o644); err != nil {
		return fmt.Errorf("write disko config %s: %w", diskoPath, err)
	}

	r.StepComplete(StepDisko)

	// Step 5: register the host in flake.nix.
	r.Out("Updating flake.nix...")

	flakePath := filepath.Join(configDir, "flake.nix")

	flakeContent, err := os.ReadFile(flakePath)
	if err != nil {
		return fmt.Errorf("read flake.nix: %w", err)
	}

	updated, err := templates.InsertFlakeHost(string(flakeContent), config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(flakePath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write flake.nix: %w", err)
	}

	r.StepComplete(StepFlakeUpdate)

	// Step 6: host metadata.
	r.Out("Generating host metadata...")

	if err := writeHostMetadata(hostDir, config); err != nil {
		return err
	}

	r.StepComplete(StepMetadata)

	r.Out("\n")
	r.Outf("Host '%s' created successfully!", config.Hostname)
	r.Out("")
	r.Out("Configuration summary:")
	r.Outf("  CPU: %s (%s)", config.Cpu.Vendor, config.Cpu.ModelName)

	gpuModel := ""
	if config.Gpu.Model != "" {
		gpuModel = fmt.Sprintf(" (%s)", config.Gpu.Model)
	}

	r.Outf("  GPU: %s%s", config.Gpu.Vendor, gpuModel)
	r.Outf("  Form factor: %s", config.FormFactor)
	r.Outf("  Disk: %s (%s)", config.Disk.Path, config.Disk.Size)

	r.Done(true)

	return nil
}

// findConfigDir locates the NixOS configuration repository, preferring
// live-ISO clone locations over installed-system ones.
func findConfigDir() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		home = "/root"
	}

	locations := []string{
		fmt.Sprintf("/tmp/nixos-config-%d", os.Getpid()),
		tempConfigDir,
		filepath.Join(home, configHomeDir),
		"/etc/nixos",
	}

	for _, loc := range locations {
		if fileExists(filepath.Join(loc, "flake.nix")) {
			return loc, nil
		}
	}

	if cwd, err := os.Getwd(); err == nil && fileExists(filepath.Join(cwd, "flake.nix")) {
		return cwd, nil
	}

	return "", errors.New("could not find NixOS configuration directory, run from within the nixos-config repository")
}

func generateHwConfigFromSystem(r *Runner, outputPath string) error {
	tempDir := fmt.Sprintf("/tmp/hw-config-%d", os.Getpid())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	ok, err := r.Run("nixos-generate-config", "--no-filesystems", "--dir", tempDir)
	if err != nil {
		return err
	}

	if !ok {
		return errors.New("nixos-generate-config failed")
	}

	return copyFile(filepath.Join(tempDir, "hardware-configuration.nix"), outputPath)
}

func writeHostMetadata(hostDir string, config *system.NewHostConfig) error {
	metadata := map[string]any{
		"cpu": map[string]any{
			"vendor": config.Cpu.Vendor.String(),
			"model":  config.Cpu.ModelName,
		},
		"gpu": map[string]any{
			"vendor": config.Gpu.Vendor.String(),
			"model":  config.Gpu.Model,
		},
		"form_factor": config.FormFactor.String(),
		"ram":         detectRam(),
	}

	content, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}

	metadataPath := filepath.Join(hostDir, "host-info.json")
	if err := os.WriteFile(metadataPath, content, 0o644); err != nil {
		return fmt.Errorf("write host metadata %s: %w", metadataPath, err)
	}

	return nil
}

// detectRam reads total memory from /proc/meminfo, rounded down to GB.
func detectRam() string {
	content, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(string(content), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}

		return fmt.Sprintf("%d GB", kb/1024/1024)
	}

	return ""
}

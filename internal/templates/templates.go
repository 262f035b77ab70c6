// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package templates generates the NixOS configuration files written by the
// create-host wizard.
package templates

import (
	"fmt"
	"strings"

	"github.com/nixforge/forge/internal/system"
)

// HostDefaultNix renders the host's default.nix with GPU, CPU and
// form-factor conditioned sections.
func HostDefaultNix(config *system.NewHostConfig) string {
	return fmt.Sprintf(`# %s - %s
{ config, pkgs, lib, ... }:

{
  imports = [
    ./hardware-configuration.nix
    ../../modules/boot/limine-plymouth.nix
  ];

  networking.hostName = "%s";
%s%s%s
  # Early KMS for Plymouth boot splash
  boot.initrd.kernelModules = lib.mkForce [
%s  ];
}
`,
		config.Hostname, hostDescription(config),
		config.Hostname,
		gpuConfig(config.Gpu.Vendor),
		cpuConfig(config.Cpu.Vendor),
		formFactorConfig(config.FormFactor),
		initrdModules(config.Gpu.Vendor),
	)
}

func hostDescription(config *system.NewHostConfig) string {
	gpu := "integrated graphics"

	switch config.Gpu.Vendor {
	case system.GpuNVIDIA:
		gpu = "NVIDIA GPU"
	case system.GpuAMD:
		gpu = "AMD GPU"
	case system.GpuIntel:
		gpu = "Intel GPU"
	}

	return fmt.Sprintf("%s with %s", config.FormFactor, gpu)
}

func gpuConfig(vendor system.GpuVendor) string {
	// NVIDIA and Intel are handled by hardware modules wired in flake.nix.
	if vendor != system.GpuAMD {
		return ""
	}

	return `
  # AMD GPU configuration
  hardware.amdgpu.initrd.enable = true;

  boot.kernelParams = [
    "amdgpu.ppfeaturemask=0xffffffff"
  ];
`
}

func cpuConfig(vendor system.CpuVendor) string {
	// AMD is the default in common.nix.
	if vendor != system.CpuIntel {
		return ""
	}

	return `
  # Intel CPU configuration (override AMD default from common.nix)
  hardware.cpu.amd.updateMicrocode = lib.mkForce false;
  hardware.cpu.intel.updateMicrocode = true;
  boot.kernelModules = [ "kvm-intel" "coretemp" ];
`
}

func formFactorConfig(formFactor system.FormFactor) string {
	// Desktops keep power-profiles-daemon from common.nix.
	if formFactor != system.Laptop {
		return ""
	}

	return `
  # Laptop power management (TLP)
  services.power-profiles-daemon.enable = false;
  services.tlp = {
    enable = true;
    settings = {
      CPU_SCALING_GOVERNOR_ON_AC = "performance";
      CPU_SCALING_GOVERNOR_ON_BAT = "powersave";
      CPU_ENERGY_PERF_POLICY_ON_AC = "performance";
      CPU_ENERGY_PERF_POLICY_ON_BAT = "power";
      CPU_BOOST_ON_AC = 1;
      CPU_BOOST_ON_BAT = 0;
      PLATFORM_PROFILE_ON_AC = "performance";
      PLATFORM_PROFILE_ON_BAT = "low-power";
      START_CHARGE_THRESH_BAT0 = 20;
      STOP_CHARGE_THRESH_BAT0 = 80;
      WIFI_PWR_ON_AC = "off";
      WIFI_PWR_ON_BAT = "on";
      RUNTIME_PM_ON_AC = "auto";
      RUNTIME_PM_ON_BAT = "auto";
      USB_AUTOSUSPEND = 1;
    };
  };
`
}

func initrdModules(vendor system.GpuVendor) string {
	switch vendor {
	case system.GpuNVIDIA:
		return `    "nvidia"
    "nvidia_modeset"
    "nvidia_uvm"
    "nvidia_drm"
    "hid-generic"
    "usbhid"
`
	case system.GpuAMD:
		return `    "amdgpu"
    "hid-generic"
    "usbhid"
`
	case system.GpuIntel:
		return `    "i915"
    "hid-generic"
    "usbhid"
`
	default:
		return `    "hid-generic"
    "usbhid"
`
	}
}

// DiskoConfig renders the per-host disko overlay pointing at the chosen disk.
func DiskoConfig(hostname, diskPath string) string {
	return fmt.Sprintf(`# Disko configuration for %s
{ ... }:

{
  imports = [ ./default.nix ];

  disko.devices.disk.main.device = "%s";
}
`, hostname, diskPath)
}

// HardwareConfig renders a fallback hardware-configuration.nix for when
// nixos-generate-config is unavailable.
func HardwareConfig(cpu system.CpuInfo, hostname string) string {
	kvmModule := "kvm-amd"
	cpuVendor := "amd"

	if cpu.Vendor == system.CpuIntel {
		kvmModule = "kvm-intel"
		cpuVendor = "intel"
	}

	return fmt.Sprintf(`# Hardware configuration for %s
# Note: Run `+"`nixos-generate-config --no-filesystems`"+` on the target system
# to generate accurate hardware detection, then merge with this template.
{ config, lib, pkgs, modulesPath, ... }:

{
  imports = [
    (modulesPath + "/installer/scan/not-detected.nix")
  ];

  boot.initrd.availableKernelModules = [ "nvme" "xhci_pci" "ahci" "thunderbolt" "usbhid" "uas" "sd_mod" "btrfs" ];
  boot.initrd.kernelModules = [ ];
  boot.kernelModules = [ "%s" ];
  boot.extraModulePackages = [ ];

  nixpkgs.hostPlatform = lib.mkDefault "x86_64-linux";
  hardware.cpu.%s.updateMicrocode = lib.mkDefault config.hardware.enableRedistributableFirmware;
}
`, hostname, kvmModule, cpuVendor)
}

// InsertFlakeHost adds the new host's entry to flake.nix inside the
// nixosConfigurations block, before its closing brace.
func InsertFlakeHost(content string, config *system.NewHostConfig) (string, error) {
	extraModules := ""

	switch config.Gpu.Vendor {
	case system.GpuNVIDIA:
		extraModules = "\n        extraModules = [ ./modules/hardware/nvidia.nix ];"
	case system.GpuIntel:
		extraModules = "\n        extraModules = [ ./modules/hardware/intel.nix ];"
	}

	description := flakeHostDescription(config)

	hostEntry := fmt.Sprintf(`
      # %s
      %s = mkNixosSystem {
        hostname = "%s";%s
      };`, description, config.Hostname, config.Hostname, extraModules)

	configsStart := strings.Index(content, "nixosConfigurations = {")
	if configsStart < 0 {
		return "", fmt.Errorf("could not find nixosConfigurations block in flake.nix")
	}

	braceCount := 0

	for i, c := range content[configsStart:] {
		switch c {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				pos := configsStart + i

				return content[:pos] + hostEntry + "\n    " + content[pos:], nil
			}
		}
	}

	return "", fmt.Errorf("could not find nixosConfigurations block in flake.nix")
}

func flakeHostDescription(config *system.NewHostConfig) string {
	form := config.FormFactor.String()

	switch config.Gpu.Vendor {
	case system.GpuNVIDIA:
		return fmt.Sprintf("%s - %s with NVIDIA GPU", config.Hostname, form)
	case system.GpuAMD:
		return fmt.Sprintf("%s - %s with AMD GPU", config.Hostname, form)
	case system.GpuIntel:
		return fmt.Sprintf("%s - %s with Intel GPU", config.Hostname, form)
	default:
		return fmt.Sprintf("%s - %s", config.Hostname, form)
	}
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nixforge/forge/internal/system"
)

func nvidiaLaptop() *system.NewHostConfig {
	return &system.NewHostConfig{
		Hostname:   "zephyr",
		Cpu:        system.CpuInfo{Vendor: system.CpuIntel, ModelName: "Intel Core i9"},
		Gpu:        system.GpuInfo{Vendor: system.GpuNVIDIA, Model: "NVIDIA AD104"},
		FormFactor: system.Laptop,
		Disk:       system.DiskInfo{Path: "/dev/nvme0n1"},
	}
}

func amdDesktop() *system.NewHostConfig {
	return &system.NewHostConfig{
		Hostname:   "tower",
		Cpu:        system.CpuInfo{Vendor: system.CpuAMD, ModelName: "AMD Ryzen 9"},
		Gpu:        system.GpuInfo{Vendor: system.GpuAMD, Model: "AMD Navi 31"},
		FormFactor: system.Desktop,
		Disk:       system.DiskInfo{Path: "/dev/sda"},
	}
}

func TestHostDefaultNixNvidiaLaptop(t *testing.T) {
	t.Parallel()

	content := HostDefaultNix(nvidiaLaptop())

	require.True(t, strings.HasPrefix(content, "# zephyr - Laptop with NVIDIA GPU\n"))
	require.Contains(t, content, `networking.hostName = "zephyr";`)

	// Intel CPU overrides the AMD microcode default.
	require.Contains(t, content, "hardware.cpu.intel.updateMicrocode = true;")

	// Laptops get TLP instead of power-profiles-daemon.
	require.Contains(t, content, "services.tlp = {")
	require.Contains(t, content, "services.power-profiles-daemon.enable = false;")

	require.Contains(t, content, `"nvidia_drm"`)
	require.NotContains(t, content, "hardware.amdgpu")
}

func TestHostDefaultNixAmdDesktop(t *testing.T) {
	t.Parallel()

	content := HostDefaultNix(amdDesktop())

	require.True(t, strings.HasPrefix(content, "# tower - Desktop with AMD GPU\n"))
	require.Contains(t, content, "hardware.amdgpu.initrd.enable = true;")
	require.Contains(t, content, `"amdgpu"`)

	// AMD CPU and desktop form factor are the defaults, no overrides.
	require.NotContains(t, content, "hardware.cpu.intel")
	require.NotContains(t, content, "services.tlp")
	require.NotContains(t, content, "nvidia")
}

func TestDiskoConfig(t *testing.T) {
	t.Parallel()

	content := DiskoConfig("tower", "/dev/sda")

	require.Contains(t, content, "# Disko configuration for tower")
	require.Contains(t, content, "imports = [ ./default.nix ];")
	require.Contains(t, content, `disko.devices.disk.main.device = "/dev/sda";`)
}

func TestHardwareConfig(t *testing.T) {
	t.Parallel()

	intel := HardwareConfig(system.CpuInfo{Vendor: system.CpuIntel}, "zephyr")
	require.Contains(t, intel, `"kvm-intel"`)
	require.Contains(t, intel, "hardware.cpu.intel.updateMicrocode")

	amd := HardwareConfig(system.CpuInfo{Vendor: system.CpuAMD}, "tower")
	require.Contains(t, amd, `"kvm-amd"`)
	require.Contains(t, amd, "hardware.cpu.amd.updateMicrocode")
}

const sampleFlake = `{
  outputs = { ... }:
    {
      nixosConfigurations = {
        # desktop - Desktop with AMD GPU
        desktop = mkNixosSystem {
          hostname = "desktop";
        };
      };
    };
}`

func TestInsertFlakeHost(t *testing.T) {
	t.Parallel()

	result, err := InsertFlakeHost(sampleFlake, nvidiaLaptop())
	require.NoError(t, err)

	require.Contains(t, result, "# zephyr - Laptop with NVIDIA GPU")
	require.Contains(t, result, "zephyr = mkNixosSystem {")
	require.Contains(t, result, `hostname = "zephyr";`)
	require.Contains(t, result, "extraModules = [ ./modules/hardware/nvidia.nix ];")

	// The existing host entry survives and the new entry lands inside the
	// nixosConfigurations block.
	require.Contains(t, result, `hostname = "desktop";`)
	require.Less(t, strings.Index(result, "zephyr = mkNixosSystem"), strings.LastIndex(result, "};"))
}

func TestInsertFlakeHostNoExtraModules(t *testing.T) {
	t.Parallel()

	result, err := InsertFlakeHost(sampleFlake, amdDesktop())
	require.NoError(t, err)
	require.Contains(t, result, "tower = mkNixosSystem {")
	require.NotContains(t, result, "extraModules")
}

func TestInsertFlakeHostMissingBlock(t *testing.T) {
	t.Parallel()

	_, err := InsertFlakeHost("{ outputs = { ... }: { }; }", nvidiaLaptop())
	require.Error(t, err)
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CpuVendor is the detected CPU manufacturer.
type CpuVendor int

// CPU vendors.
const (
	CpuUnknown CpuVendor = iota
	CpuAMD
	CpuIntel
)

func (v CpuVendor) String() string {
	switch v {
	case CpuAMD:
		return "AMD"
	case CpuIntel:
		return "Intel"
	default:
		return "Unknown"
	}
}

// GpuVendor is the detected GPU manufacturer.
type GpuVendor int

// GPU vendors, in discrete-first priority order.
const (
	GpuNone GpuVendor = iota
	GpuNVIDIA
	GpuAMD
	GpuIntel
)

func (v GpuVendor) String() string {
	switch v {
	case GpuNVIDIA:
		return "NVIDIA"
	case GpuAMD:
		return "AMD"
	case GpuIntel:
		return "Intel"
	default:
		return "None (integrated/software)"
	}
}

// FormFactor distinguishes laptops from desktops.
type FormFactor int

// Form factors.
const (
	Desktop FormFactor = iota
	Laptop
)

func (f FormFactor) String() string {
	if f == Laptop {
		return "Laptop"
	}

	return "Desktop"
}

// CpuInfo holds the detected CPU vendor and model.
type CpuInfo struct {
	Vendor    CpuVendor
	ModelName string
}

// GpuInfo holds the detected GPU vendor and optional model.
type GpuInfo struct {
	Vendor GpuVendor
	Model  string
}

// HardwareInfo aggregates all hardware detection results.
type HardwareInfo struct {
	Cpu        CpuInfo
	Gpu        GpuInfo
	FormFactor FormFactor
}

// DetectAll runs CPU, GPU and form-factor detection.
func DetectAll() (HardwareInfo, error) {
	cpu, err := DetectCpu()
	if err != nil {
		return HardwareInfo{}, err
	}

	gpu, err := DetectGpu()
	if err != nil {
		return HardwareInfo{}, err
	}

	return HardwareInfo{Cpu: cpu, Gpu: gpu, FormFactor: DetectFormFactor()}, nil
}

// DetectCpu reads vendor and model from /proc/cpuinfo.
func DetectCpu() (CpuInfo, error) {
	content, _ := os.ReadFile("/proc/cpuinfo")

	info := CpuInfo{Vendor: CpuUnknown, ModelName: "Unknown CPU"}

	for _, line := range strings.Split(string(content), "\n") {
		switch {
		case strings.HasPrefix(line, "vendor_id"):
			if _, value, ok := strings.Cut(line, ":"); ok {
				switch strings.TrimSpace(value) {
				case "AuthenticAMD":
					info.Vendor = CpuAMD
				case "GenuineIntel":
					info.Vendor = CpuIntel
				}
			}
		case strings.HasPrefix(line, "model name"):
			if _, value, ok := strings.Cut(line, ":"); ok {
				info.ModelName = strings.TrimSpace(value)
			}
		}

		if info.Vendor != CpuUnknown && info.ModelName != "Unknown CPU" {
			break
		}
	}

	return info, nil
}

// PCI vendor IDs as they appear in lspci -nn output.
const (
	nvidiaVendorID = "10de"
	amdVendorID    = "1002"
	intelVendorID  = "8086"
)

// DetectGpu finds the most capable GPU via lspci, preferring discrete cards
// (NVIDIA over AMD over Intel) when a system carries more than one.
func DetectGpu() (GpuInfo, error) {
	out, err := exec.Command("lspci", "-nn").Output()
	if err != nil {
		return GpuInfo{}, fmt.Errorf("run lspci: %w", err)
	}

	best := GpuInfo{Vendor: GpuNone}

	for _, line := range strings.Split(string(out), "\n") {
		// Display controller covers some AMD GPUs (e.g. Strix Halo).
		if !strings.Contains(line, "VGA compatible controller") &&
			!strings.Contains(line, "3D controller") &&
			!strings.Contains(line, "Display controller") {
			continue
		}

		lower := strings.ToLower(line)

		var candidate GpuInfo

		switch {
		case strings.Contains(lower, "["+nvidiaVendorID+":"):
			candidate = GpuInfo{Vendor: GpuNVIDIA, Model: ExtractGpuModel(line, "NVIDIA")}
		case strings.Contains(lower, "["+amdVendorID+":"):
			candidate = GpuInfo{Vendor: GpuAMD, Model: ExtractGpuModel(line, "AMD")}
		case strings.Contains(lower, "["+intelVendorID+":"):
			candidate = GpuInfo{Vendor: GpuIntel, Model: ExtractGpuModel(line, "Intel")}
		default:
			continue
		}

		if betterGpu(best.Vendor, candidate.Vendor) {
			best = candidate
		}
	}

	return best, nil
}

func betterGpu(current, candidate GpuVendor) bool {
	switch {
	case current == GpuNone:
		return true
	case candidate == GpuNVIDIA && current != GpuNVIDIA:
		return true
	case candidate == GpuAMD && current == GpuIntel:
		return true
	default:
		return false
	}
}

// ExtractGpuModel pulls a readable model name out of one lspci line.
func ExtractGpuModel(line, vendorName string) string {
	_, afterColon, ok := strings.Cut(line, ": ")
	if !ok {
		return ""
	}

	bracketPos := strings.LastIndex(afterColon, " [")
	if bracketPos < 0 {
		return ""
	}

	model := strings.TrimSpace(afterColon[:bracketPos])
	for _, prefix := range []string{
		"NVIDIA Corporation ",
		"Advanced Micro Devices, Inc. ",
		"AMD/ATI ",
		"Intel Corporation ",
	} {
		model = strings.TrimPrefix(model, prefix)
	}

	return vendorName + " " + model
}

// DetectFormFactor checks for a battery, then the DMI chassis type.
func DetectFormFactor() FormFactor {
	entries, err := os.ReadDir("/sys/class/power_supply")
	if err == nil {
		for _, entry := range entries {
			typePath := filepath.Join("/sys/class/power_supply", entry.Name(), "type")

			content, err := os.ReadFile(typePath)
			if err == nil && strings.EqualFold(strings.TrimSpace(string(content)), "battery") {
				return Laptop
			}
		}
	}

	if content, err := os.ReadFile("/sys/class/dmi/id/chassis_type"); err == nil {
		// Laptop chassis types per the SMBIOS spec.
		switch strings.TrimSpace(string(content)) {
		case "8", "9", "10", "11", "14", "31", "32":
			return Laptop
		}
	}

	return Desktop
}

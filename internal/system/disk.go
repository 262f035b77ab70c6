// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package system probes the local machine: block devices, CPU/GPU hardware,
// form factor, network reachability and available host configurations.
package system

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// OsType identifies an operating system found on a partition.
type OsType string

// Known operating systems.
const (
	OsNixOS   OsType = "NixOS"
	OsFedora  OsType = "Fedora"
	OsUbuntu  OsType = "Ubuntu"
	OsDebian  OsType = "Debian"
	OsArch    OsType = "Arch"
	OsWindows OsType = "Windows"
	OsUnknown OsType = "Unknown"
)

// PartitionInfo describes one partition on a disk.
type PartitionInfo struct {
	Path   string
	Size   string
	Fstype string
	Label  string
	Os     OsType // empty when nothing was detected
}

// DiskInfo describes a physical disk device.
type DiskInfo struct {
	Path       string
	Size       string
	SizeBytes  uint64
	Model      string
	Partitions []PartitionInfo
}

type lsblkOutput struct {
	BlockDevices []blockDevice `json:"blockdevices"`
}

type blockDevice struct {
	Name     string        `json:"name"`
	Size     string        `json:"size"`
	Model    string        `json:"model"`
	Type     string        `json:"type"`
	Fstype   string        `json:"fstype"`
	Label    string        `json:"label"`
	Children []blockDevice `json:"children"`
}

// AvailableDisks lists physical disks (excluding loop, ram, zram, sr and fd
// devices), largest first, with partition and OS probe info.
func AvailableDisks() ([]DiskInfo, error) {
	out, err := exec.Command("lsblk", "-J", "-o", "NAME,SIZE,MODEL,TYPE,FSTYPE,LABEL").Output()
	if err != nil {
		return nil, fmt.Errorf("run lsblk: %w", err)
	}

	var parsed lsblkOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		// Older lsblk without JSON support.
		return availableDisksTextFallback()
	}

	var disks []DiskInfo

	for _, dev := range parsed.BlockDevices {
		if dev.Type != "disk" || skipDevice(dev.Name) {
			continue
		}

		disks = append(disks, DiskInfo{
			Path:       "/dev/" + dev.Name,
			Size:       dev.Size,
			SizeBytes:  ParseSize(dev.Size),
			Model:      strings.TrimSpace(dev.Model),
			Partitions: partitionsOf(dev.Children),
		})
	}

	sortDisks(disks)

	return disks, nil
}

func skipDevice(name string) bool {
	for _, prefix := range []string{"loop", "ram", "zram", "sr", "fd"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

func sortDisks(disks []DiskInfo) {
	sort.SliceStable(disks, func(i, j int) bool {
		return disks[i].SizeBytes > disks[j].SizeBytes
	})
}

func partitionsOf(children []blockDevice) []PartitionInfo {
	var parts []PartitionInfo

	for _, child := range children {
		if child.Type != "part" {
			continue
		}

		path := "/dev/" + child.Name

		parts = append(parts, PartitionInfo{
			Path:   path,
			Size:   child.Size,
			Fstype: child.Fstype,
			Label:  child.Label,
			Os:     detectOsType(path, child.Fstype),
		})
	}

	return parts
}

func detectOsType(partitionPath, fstype string) OsType {
	// NTFS is almost always Windows; vfat is the EFI partition.
	switch fstype {
	case "ntfs":
		return OsWindows
	case "vfat":
		return ""
	case "ext4", "ext3", "btrfs", "xfs", "f2fs":
		return detectLinuxOs(partitionPath)
	default:
		return ""
	}
}

// detectLinuxOs mounts the partition read-only and inspects /etc.
func detectLinuxOs(partitionPath string) OsType {
	mountPoint := fmt.Sprintf("/tmp/forge-detect-%d", os.Getpid())

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return ""
	}

	defer func() {
		_ = exec.Command("umount", mountPoint).Run()
		_ = os.Remove(mountPoint)
	}()

	if err := exec.Command("mount", "-o", "ro,noexec,nosuid", partitionPath, mountPoint).Run(); err != nil {
		return ""
	}

	if _, err := os.Stat(filepath.Join(mountPoint, "etc/nixos")); err == nil {
		return OsNixOS
	}

	content, err := os.ReadFile(filepath.Join(mountPoint, "etc/os-release"))
	if err != nil {
		return ""
	}

	return ParseOsRelease(string(content))
}

// ParseOsRelease maps the ID field of /etc/os-release to an OsType.
func ParseOsRelease(content string) OsType {
	for _, line := range strings.Split(content, "\n") {
		id, found := strings.CutPrefix(line, "ID=")
		if !found {
			continue
		}

		id = strings.ToLower(strings.Trim(strings.TrimSpace(id), `"`))

		switch id {
		case "nixos":
			return OsNixOS
		case "fedora":
			return OsFedora
		case "ubuntu":
			return OsUbuntu
		case "debian":
			return OsDebian
		case "arch", "archlinux":
			return OsArch
		case "opensuse", "opensuse-leap", "opensuse-tumbleweed":
			return OsType("openSUSE")
		case "manjaro":
			return OsType("Manjaro")
		case "pop":
			return OsType("Pop!_OS")
		case "linuxmint", "mint":
			return OsType("Linux Mint")
		case "elementary":
			return OsType("elementary OS")
		case "gentoo":
			return OsType("Gentoo")
		case "void":
			return OsType("Void Linux")
		case "":
			return OsUnknown
		default:
			return OsType(id)
		}
	}

	return ""
}

func availableDisksTextFallback() ([]DiskInfo, error) {
	out, err := exec.Command("lsblk", "-dno", "NAME,SIZE,TYPE").Output()
	if err != nil {
		return nil, fmt.Errorf("run lsblk fallback: %w", err)
	}

	var disks []DiskInfo

	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[2] != "disk" || skipDevice(fields[0]) {
			continue
		}

		disks = append(disks, DiskInfo{
			Path:      "/dev/" + fields[0],
			Size:      fields[1],
			SizeBytes: ParseSize(fields[1]),
		})
	}

	sortDisks(disks)

	return disks, nil
}

// ParseSize converts an lsblk size string like "1.8T" to bytes.
func ParseSize(size string) uint64 {
	size = strings.TrimSpace(size)
	if size == "" {
		return 0
	}

	unit := uint64(1)
	numStr := size

	switch {
	case strings.HasSuffix(size, "T"):
		numStr, unit = size[:len(size)-1], 1<<40
	case strings.HasSuffix(size, "G"):
		numStr, unit = size[:len(size)-1], 1<<30
	case strings.HasSuffix(size, "M"):
		numStr, unit = size[:len(size)-1], 1<<20
	case strings.HasSuffix(size, "K"):
		numStr, unit = size[:len(size)-1], 1<<10
	}

	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		log.Warn("failed to parse disk size", "size", size, "err", err)

		return 0
	}

	return uint64(num * float64(unit))
}

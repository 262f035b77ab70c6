// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/system"
	"github.com/nixforge/forge/internal/tui/styles"
)

func newTestInstall(t *testing.T, data InstallData) *Install {
	t.Helper()

	tx := make(chan commands.Message, commands.ChannelSize)

	return NewInstall(context.Background(), styles.New(), tx, data)
}

func TestInstallSeededHostAndDiskStartsAtCredentials(t *testing.T) {
	t.Parallel()

	model := newTestInstall(t, InstallData{Hostname: "zephyr", Disk: "/dev/sda", FromWizard: true})

	require.Equal(t, installCredentials, model.phase)
	require.False(t, model.Idle())
}

func TestInstallBackFromCredentialsClearsDisks(t *testing.T) {
	t.Parallel()

	model := newTestInstall(t, InstallData{Hostname: "zephyr", Disk: "/dev/sda", FromWizard: true})

	_, _ = model.Update(disksLoadedMsg{disks: []system.DiskInfo{
		{Path: "/dev/sda", Model: "Samsung SSD", SizeBytes: 1 << 40},
	}})
	require.Len(t, model.disks, 1)

	_, cmd := press(t, model, "esc")

	require.Equal(t, installSelectDisk, model.phase)
	require.Nil(t, model.disks)
	require.Zero(t, model.diskCursor)
	require.NotNil(t, cmd)
}

func TestInstallDiskListRefreshesAfterReset(t *testing.T) {
	t.Parallel()

	model := newTestInstall(t, InstallData{Hostname: "zephyr", Disk: "/dev/sda", FromWizard: true})
	_, _ = press(t, model, "esc")

	_, _ = model.Update(disksLoadedMsg{disks: []system.DiskInfo{
		{Path: "/dev/nvme0n1", Model: "WD Black", SizeBytes: 2 << 40},
	}})

	require.Len(t, model.disks, 1)
	require.Equal(t, "/dev/nvme0n1", model.disks[0].Path)
	require.Empty(t, model.diskErr)
}

func TestInstallCompleteKeepsOutputReviewable(t *testing.T) {
	t.Parallel()

	model := newTestInstall(t, InstallData{Hostname: "zephyr", Disk: "/dev/sda", FromWizard: true})
	model.phase = installRunning
	model.steps = NewStepList("Installing NixOS")

	for i := 0; i < 30; i++ {
		_, _ = model.Update(CommandMsg(commands.Message{Kind: commands.Stdout, Line: fmt.Sprintf("line %d", i)}))
	}

	_, _ = model.Update(CommandMsg(commands.Message{Kind: commands.Done, Success: true}))
	require.Equal(t, installComplete, model.phase)

	view := model.View()
	require.Contains(t, view, "Installation Complete")
	require.Contains(t, view, "line 29")

	_, _ = press(t, model, "up")
	view = model.View()
	require.Contains(t, view, "line 17")
	require.NotContains(t, view, "line 29")

	_, _ = press(t, model, "down")
	view = model.View()
	require.Contains(t, view, "line 29")
}

func TestInstallCompleteEnterReturnsToMenu(t *testing.T) {
	t.Parallel()

	model := newTestInstall(t, InstallData{Hostname: "zephyr", Disk: "/dev/sda", FromWizard: true})
	model.phase = installRunning
	_, _ = model.Update(CommandMsg(commands.Message{Kind: commands.Done, Success: false}))

	_, cmd := press(t, model, "enter")
	require.NotNil(t, cmd)

	nav, ok := cmd().(NavigateMsg)
	require.True(t, ok)
	require.Equal(t, MenuScreen, nav.Screen)
}

// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package cli provides the command-line interface. Every command opens
// the TUI at the matching screen; flags and arguments seed the initial
// state.
package cli

import (
	"context"
	"fmt"

	"github.com/nixforge/forge/internal/tui"
	"github.com/nixforge/forge/internal/tui/models"
	"github.com/urfave/cli/v3"
)

// Version is the released forge version.
const Version = "1.0.0"

// App builds the root CLI command.
func App() *cli.Command {
	return &cli.Command{
		Name:    "forge",
		Usage:   "NixOS installation and maintenance",
		Version: Version,
		Suggest: true,
		Description: `Interactive TUI for installing NixOS, keeping a flake-based system
up to date, and managing app profiles and keys.

Run without arguments for the main menu, or jump straight to a flow:

  forge install kraken /dev/nvme0n1
  forge update
  forge apps backup
  forge keys status`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 0 {
				return fmt.Errorf("unknown command %q, run 'forge --help'", cmd.Args().First())
			}

			return tui.Launch(ctx, models.MenuScreen, nil)
		},
		Commands: []*cli.Command{
			installCommand(),
			createHostCommand(),
			updateCommand(),
			appsCommand(),
			keysCommand(),
		},
	}
}

func installCommand() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "Fresh NixOS installation",
		ArgsUsage: "[hostname] [disk]",
		Description: `Install NixOS onto a disk from the live ISO.

The hostname must exist in the configuration repository; the disk is a
block device such as /dev/nvme0n1. Both are selected interactively when
omitted.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			data := models.InstallData{
				Hostname: cmd.Args().Get(0),
				Disk:     cmd.Args().Get(1),
			}

			return tui.Launch(ctx, models.InstallScreen, data)
		},
	}
}

func createHostCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-host",
		Usage: "Create a new host configuration",
		Description: `Walk through hardware detection, disk selection and hostname entry,
then generate the host directory, disko layout and flake.nix entry.`,
		Action: func(ctx context.Context, _ *cli.Command) error {
			// The hostname is entered at the end of the wizard, so the
			// flow always starts with hardware detection.
			return tui.Launch(ctx, models.CreateHostScreen, nil)
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Update flake inputs, rebuild the system, and update CLI tools",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return tui.Launch(ctx, models.UpdateScreen, nil)
		},
	}
}

func appsCommand() *cli.Command {
	forceFlag := &cli.BoolFlag{
		Name:    "force",
		Aliases: []string{"f"},
		Usage:   "run even if apps are currently running",
	}

	return &cli.Command{
		Name:    "apps",
		Aliases: []string{"browser"},
		Usage:   "App profile management (browsers, Termius, etc.)",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return tui.Launch(ctx, models.AppsScreen, models.AppsData{Action: models.AppsMenu})
		},
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "Backup app profiles and push to GitHub",
				Flags: []cli.Flag{forceFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					data := models.AppsData{Action: models.AppsBackup, Force: cmd.Bool("force")}
					return tui.Launch(ctx, models.AppsScreen, data)
				},
			},
			{
				Name:  "restore",
				Usage: "Pull and restore app profiles from GitHub",
				Flags: []cli.Flag{forceFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					data := models.AppsData{Action: models.AppsRestore, Force: cmd.Bool("force")}
					return tui.Launch(ctx, models.AppsScreen, data)
				},
			},
			{
				Name:  "status",
				Usage: "Check for app profile updates",
				Action: func(ctx context.Context, _ *cli.Command) error {
					data := models.AppsData{Action: models.AppsStatus}
					return tui.Launch(ctx, models.AppsScreen, data)
				},
			},
		},
	}
}

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "Key management (Age and SSH keys)",
		Commands: []*cli.Command{
			{
				Name:  "setup",
				Usage: "Setup keys from 1Password (one-time initial setup)",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return tui.Launch(ctx, models.KeysScreen, models.KeysData{Action: models.KeysSetup})
				},
			},
			{
				Name:  "backup",
				Usage: "Backup keys to passphrase-encrypted archive",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return tui.Launch(ctx, models.KeysScreen, models.KeysData{Action: models.KeysBackup})
				},
			},
			{
				Name:  "restore",
				Usage: "Restore keys from passphrase-encrypted archive",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "overwrite existing keys",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					data := models.KeysData{Action: models.KeysRestore, Force: cmd.Bool("force")}
					return tui.Launch(ctx, models.KeysScreen, data)
				},
			},
			{
				Name:  "status",
				Usage: "Show key status",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return tui.Launch(ctx, models.KeysScreen, models.KeysData{Action: models.KeysStatus})
				},
			},
		},
	}
}

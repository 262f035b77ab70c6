// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Package main provides the forge-notify background update checker. It
// runs one check cycle and exits, designed for a systemd user timer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/nixforge/forge/internal/notify"
	"github.com/nixforge/forge/internal/paths"
)

const (
	exitSuccess      = 0
	exitGeneralError = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := &cli.Command{
		Name:    "forge-notify",
		Usage:   "Background update checker for Forge",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show verbose output",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			closeLog, err := setupLogging(cmd.Bool("verbose"))
			if err != nil {
				return fmt.Errorf("set up logging: %w", err)
			}
			defer closeLog()

			log.Info("forge-notify starting")

			notified, err := runCheck(ctx)
			// The service must succeed even when checks fail, so systemd
			// does not mark the unit failed on transient network errors.
			switch {
			case err != nil:
				log.Error("check failed", "err", err)
			case notified:
				log.Info("notification sent")
			default:
				log.Info("no new updates to notify about")
			}

			log.Info("forge-notify complete")

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		return exitGeneralError
	}

	return exitSuccess
}

// runCheck performs one update check cycle and sends a desktop
// notification when anything new turned up.
func runCheck(ctx context.Context) (bool, error) {
	state, err := notify.LoadState()
	if err != nil {
		state = &notify.State{}
	}

	cfg := notify.LoadConfig()

	status, err := notify.CheckAllUpdates(ctx, cfg)
	if err != nil {
		return false, err
	}

	log.Debug("check results",
		"config", len(status.ConfigUpdates),
		"apps", status.AppUpdates,
		"flake", len(status.FlakeUpdates))

	if !state.ShouldNotify(status) {
		return false, nil
	}

	if err := sendNotification(ctx, cfg, status); err != nil {
		return false, err
	}

	state.MarkNotified(status)

	if err := state.Save(); err != nil {
		return false, err
	}

	return true, nil
}

// sendNotification shows a desktop notification via notify-send.
func sendNotification(ctx context.Context, cfg *notify.Config, status *notify.UpdateStatus) error {
	body := status.Summary() + "\n\nRun 'forge update' to apply."

	cmd := exec.CommandContext(ctx, "notify-send",
		"--app-name", "forge",
		"--icon", cfg.Notification.Icon,
		"--urgency", cfg.Notification.Urgency,
		"--expire-time", strconv.Itoa(cfg.Notification.TimeoutMs),
		"Forge Updates Available", body)

	return cmd.Run()
}

// setupLogging writes structured logs to the forge data directory.
func setupLogging(verbose bool) (func(), error) {
	if err := os.MkdirAll(paths.DataDir(), 0o755); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(paths.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	log.SetOutput(logFile)
	log.SetReportTimestamp(true)

	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	return func() { _ = logFile.Close() }, nil
}

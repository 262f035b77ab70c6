// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nixforge/forge/internal/notify"
	"github.com/nixforge/forge/internal/paths"
)

// Timeout for startup update checks, shorter than background checks.
const startupCheckTimeout = 5 * time.Second

// StartAppBackup launches an app profile backup.
func StartAppBackup(ctx context.Context, tx chan<- Message, force bool) {
	Spawn(ctx, tx, "App backup", StepBackup, func(r *Runner) error {
		args := []string{"--push"}
		if force {
			args = append(args, "--force")
		}

		_, err := r.RunSimpleOperation("App Profile Backup", "app-backup", args,
			"App profiles backed up successfully", "Backup failed")

		return err
	})
}

// StartAppRestore launches an app profile restore.
func StartAppRestore(ctx context.Context, tx chan<- Message, force bool) {
	Spawn(ctx, tx, "App restore", StepRestore, func(r *Runner) error {
		args := []string{"--pull"}
		if force {
			args = append(args, "--force")
		}

		_, err := r.RunSimpleOperation("App Profile Restore", "app-restore", args,
			"App profiles restored successfully", "Restore failed")

		return err
	})
}

// StartAppStatus launches an app profile status report. The report always
// completes successfully; failures surface as stderr lines.
func StartAppStatus(ctx context.Context, tx chan<- Message) {
	runner := NewRunner(ctx, tx)

	go func() {
		if err := runAppStatus(runner); err != nil {
			runner.Err(err.Error())
		}

		runner.Done(true)
	}()
}

// StartQuickUpdateCheck runs background update checks at startup. The
// UpdatesAvailable message is always sent so the UI can clear its
// check-in-progress state.
func StartQuickUpdateCheck(ctx context.Context, tx chan<- Message) {
	go func() {
		nixosCh := make(chan []Commit, 1)
		appsCh := make(chan bool, 1)

		go func() {
			var commits []Commit

			pending, err := notify.CheckNixosConfigUpdates(ctx, startupCheckTimeout)
			if err == nil {
				for _, c := range pending {
					commits = append(commits, Commit{Hash: c.Hash, Message: c.Message})
				}
			}

			nixosCh <- commits
		}()

		go func() {
			pending, err := notify.CheckAppUpdates(ctx, startupCheckTimeout)
			if err != nil {
				pending = false
			}

			appsCh <- pending
		}()

		commits := <-nixosCh
		appProfiles := <-appsCh

		msg := Message{
			Kind: UpdatesAvailable,
			Updates: &PendingUpdates{
				NixosConfig: len(commits) > 0,
				AppProfiles: appProfiles,
				Commits:     commits,
			},
		}

		select {
		case tx <- msg:
		case <-ctx.Done():
		}
	}()
}

func runAppStatus(r *Runner) error {
	r.Header("App Profile Status")

	repo := paths.AppBackupDataDir()

	if !fileExists(filepath.Join(repo, ".git")) {
		r.Out("  Local repository not found.")
		r.Out("  Run 'forge apps restore' to clone.")
		r.Footer()

		return nil
	}

	remoteOk, _, _, err := RunCapture(r.Context(), "git", "-C", repo, "remote", "get-url", "origin")
	if err != nil {
		return err
	}

	if !remoteOk {
		r.Out("  No remote 'origin' configured")
		r.Out("")
		listLocalBackupFiles(r, repo)
		r.Footer()

		return nil
	}

	r.Out("  Checking for updates...")

	fetchOk, _, _, err := RunCapture(r.Context(), "git", "-C", repo, "fetch", "origin")
	if err != nil {
		return err
	}

	if !fetchOk {
		r.Out("  Unable to reach remote; showing local status only")
		r.Out("")
		listLocalBackupFiles(r, repo)
		r.Footer()

		return nil
	}

	_, localHead, _, err := RunCapture(r.Context(), "git", "-C", repo, "rev-parse", "HEAD")
	if err != nil {
		return err
	}

	remoteOk, remoteHead, _, err := RunCapture(r.Context(), "git", "-C", repo, "rev-parse", "origin/main")
	if err != nil {
		return err
	}

	if !remoteOk {
		masterOk, masterHead, _, err := RunCapture(r.Context(), "git", "-C", repo, "rev-parse", "origin/master")
		if err != nil {
			return err
		}

		if !masterOk {
			r.Out("  Remote branch not found (origin/main or origin/master)")
			r.Out("")
			listLocalBackupFiles(r, repo)
			r.Footer()

			return nil
		}

		remoteHead = masterHead
	}

	if err := showSyncStatus(r, repo, localHead, remoteHead); err != nil {
		return err
	}

	r.Out("")
	listLocalBackupFiles(r, repo)
	r.Footer()

	return nil
}

func showSyncStatus(r *Runner, repo, localHead, remoteHead string) error {
	localHead = strings.TrimSpace(localHead)
	remoteHead = strings.TrimSpace(remoteHead)

	if localHead == remoteHead {
		r.Out("")
		r.Out("  App profiles are up to date")

		return nil
	}

	r.Out("")
	r.Out("  Remote has newer profiles")
	r.Out("")
	r.Out("  Remote commits:")

	_, commits, _, err := RunCapture(r.Context(), "git", "-C", repo,
		"log", "--oneline", fmt.Sprintf("%s..%s", localHead, remoteHead))
	if err != nil {
		return err
	}

	for _, line := range strings.Split(commits, "\n") {
		if line != "" {
			r.Out("    " + line)
		}
	}

	r.Out("")
	r.Out("  Run 'forge apps restore' to update")

	return nil
}

func listLocalBackupFiles(r *Runner, repo string) {
	r.Out("  Local files:")

	success, fileList, _, err := RunCapture(r.Context(), "find", repo,
		"-maxdepth", "1", "-name", "*.age", "-exec", "ls", "-lh", "{}", ";")

	if err == nil && success && strings.TrimSpace(fileList) != "" {
		for _, line := range strings.Split(fileList, "\n") {
			parts := strings.Fields(line)
			if len(parts) < 9 {
				continue
			}

			size := parts[4]
			name := filepath.Base(parts[len(parts)-1])
			r.Outf("    %s (%s)", name, size)
		}
	} else {
		r.Out("    (no backup files)")
	}

	r.Out("")
}

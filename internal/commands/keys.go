// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import "context"

// StartKeySetup fetches Age and SSH keys from 1Password.
func StartKeySetup(ctx context.Context, tx chan<- Message) {
	Spawn(ctx, tx, "Key setup", StepSetup, func(r *Runner) error {
		_, err := r.RunSimpleOperation("Key Setup (from 1Password)", "keys-setup", nil,
			"Keys set up successfully", "Setup failed")

		return err
	})
}

// StartKeyBackup pushes keys to the backup repository.
func StartKeyBackup(ctx context.Context, tx chan<- Message) {
	Spawn(ctx, tx, "Key backup", StepBackup, func(r *Runner) error {
		_, err := r.RunSimpleOperation("Key Backup", "keys-backup", []string{"--push"},
			"Keys backed up successfully", "Backup failed")

		return err
	})
}

// StartKeyRestore pulls keys from the backup repository.
func StartKeyRestore(ctx context.Context, tx chan<- Message, force bool) {
	Spawn(ctx, tx, "Key restore", StepRestore, func(r *Runner) error {
		args := []string{"--pull"}
		if force {
			args = append(args, "--force")
		}

		_, err := r.RunSimpleOperation("Key Restore", "keys-restore", args,
			"Keys restored successfully", "Restore failed")

		return err
	})
}

// StartKeyStatus reports key state. The report itself always completes.
func StartKeyStatus(ctx context.Context, tx chan<- Message) {
	runner := NewRunner(ctx, tx)

	go func() {
		runner.Header("Key Status")

		if _, err := runner.Run("keys-status"); err != nil {
			runner.Err(err.Error())
		}

		runner.Footer()
		runner.Done(true)
	}()
}

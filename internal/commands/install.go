// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

// Installation paths and identity constants.
const (
	repoURL           = "https://github.com/DigitalPals/nixos-config.git"
	tempConfigDir     = "/tmp/nixos-config"
	hostsSubdir       = "hosts"
	installMountPoint = "/mnt"
	installSymlink    = "/mnt/etc/nixos"
	configHomeDir     = "nixos-config"
	luksPasswordFile  = "/tmp/luks-password"

	// The first regular user on NixOS.
	primaryUserUID = 1000
	primaryUserGID = 100

	// Username baked into the stock configuration.
	defaultUsername = "john"
)

var (
	diskDeviceRe = regexp.MustCompile(`device = "/dev/[^"]*"`)
	luksNameRe   = regexp.MustCompile(`(name = "cryptroot";)`)
)

// StartInstall launches the fresh-installation runner in the background.
func StartInstall(ctx context.Context, tx chan<- Message, hostname, disk, username, password string) {
	Spawn(ctx, tx, "Installation", "Install", func(r *Runner) error {
		return runInstall(r, hostname, disk, username, password)
	})
}

func runInstall(r *Runner, hostname, disk, username, password string) error {
	// Step 1: network connectivity.
	r.Out("Checking network connectivity...")

	ok, _, _, err := RunCapture(r.Context(), "ping", "-c", "1", "-W", "5", "github.com")
	if err != nil {
		return err
	}

	if !ok {
		r.StepFailed(StepNetwork, "No network connection. Please connect to WiFi using nmtui.", "Installation")
		r.Done(false)

		return nil
	}

	r.StepComplete(StepNetwork)

	// Step 2: enable flakes for every nix invocation below.
	r.Out("Enabling Nix flakes...")
	os.Setenv("NIX_CONFIG", "experimental-features = nix-command flakes")
	r.StepComplete(StepFlakes)

	// Step 3: clone the configuration repository, unless the create-host
	// wizard already left a clone containing this host.
	hostInTemp := fileExists(filepath.Join(tempConfigDir, hostsSubdir, hostname, "default.nix"))

	if hostInTemp {
		r.Out("Using existing configuration (host already created)...")
	} else {
		r.Out("Cloning configuration repository...")
		_ = os.RemoveAll(tempConfigDir)

		ok, err := r.Run("nix-shell", "-p", "git", "--run",
			fmt.Sprintf("git clone --depth 1 %s %s", repoURL, tempConfigDir))
		if err != nil {
			return err
		}

		if !ok {
			r.StepFailed(StepRepository, "Failed to clone repository", "Installation")
			r.Done(false)

			return nil
		}
	}

	r.StepComplete(StepRepository)

	// Step 4: point the disko config at the chosen disk.
	r.Outf("Configuring disk device %s...", disk)

	if !strings.HasPrefix(disk, "/dev/") {
		r.StepFailed(StepDisk, fmt.Sprintf("Invalid disk path: %s. Must start with /dev/", disk), "Installation")
		r.Done(false)

		return nil
	}

	if !fileExists(disk) {
		r.StepFailed(StepDisk, fmt.Sprintf("Disk device does not exist: %s", disk), "Installation")
		r.Done(false)

		return nil
	}

	diskoFile := filepath.Join(tempConfigDir, "modules", "disko", hostname+".nix")
	if !fileExists(diskoFile) {
		r.StepFailed(StepDisk, fmt.Sprintf(
			"No disko configuration found for host '%s'. Expected: modules/disko/%s.nix",
			hostname, hostname), "Installation")
		r.Done(false)

		return nil
	}

	diskoContent, err := os.ReadFile(diskoFile)
	if err != nil {
		return fmt.Errorf("read disko config %s: %w", diskoFile, err)
	}

	if err := os.WriteFile(diskoFile, []byte(UpdateDiskDevice(string(diskoContent), disk)), 0o644); err != nil {
		return fmt.Errorf("write disko config %s: %w", diskoFile, err)
	}

	if username != defaultUsername {
		r.Outf("Configuring username '%s'...", username)

		flakeFile := filepath.Join(tempConfigDir, "flake.nix")

		flakeContent, err := os.ReadFile(flakeFile)
		if err != nil {
			return fmt.Errorf("read flake.nix: %w", err)
		}

		updated := UpdateFlakeUsername(string(flakeContent), hostname, username)
		if err := os.WriteFile(flakeFile, []byte(updated), 0o644); err != nil {
			return fmt.Errorf("write flake.nix: %w", err)
		}
	}

	r.StepComplete(StepDisk)

	// Step 5: partition and format with disko.
	r.Out("Running disko to partition and format...")
	r.Out("Using provided passphrase for LUKS encryption...")

	// disko reads the LUKS passphrase from a file, not stdin.
	if err := os.WriteFile(luksPasswordFile, []byte(password), 0o600); err != nil {
		return fmt.Errorf("write LUKS password file: %w", err)
	}

	diskoDefault := filepath.Join(tempConfigDir, "modules", "disko", "default.nix")

	defaultContent, err := os.ReadFile(diskoDefault)
	if err != nil {
		return fmt.Errorf("read disko default.nix: %w", err)
	}

	injected := InjectLuksPasswordFile(string(defaultContent))
	if err := os.WriteFile(diskoDefault, []byte(injected), 0o644); err != nil {
		return fmt.Errorf("write disko default.nix: %w", err)
	}

	if strings.Contains(injected, "passwordFile") {
		r.Out("LUKS passwordFile configured successfully")
	} else {
		r.Err("WARNING: passwordFile injection may have failed!")
	}

	// Pre-fetch disko so the run below starts fast; failures are harmless.
	if ok, err := r.Run("nix", "build", tempConfigDir+"#disko", "--no-link"); err != nil || !ok {
		log.Warn("disko pre-fetch failed, continuing", "err", err)
	}

	ok, err = r.Run("nix",
		"run", tempConfigDir+"#disko", "--",
		"--yes-wipe-all-disks",
		"--mode", "destroy,format,mount",
		"--flake", tempConfigDir+"#"+hostname)

	// Remove the passphrase file as soon as disko is done with it.
	if rmErr := os.Remove(luksPasswordFile); rmErr != nil {
		log.Warn("failed to remove LUKS password file", "err", rmErr)
	}

	if err != nil {
		return err
	}

	if !ok {
		r.StepFailed(StepDisko, "Disk partitioning failed", "Installation")
		r.Done(false)

		return nil
	}

	r.StepComplete(StepDisko)

	// Step 6: install NixOS from the mounted target.
	r.Out("Installing NixOS...")

	configDir := filepath.Join(installMountPoint, "home", username, configHomeDir)
	symlinkTarget := filepath.Join("/home", username, configHomeDir)

	if err := os.MkdirAll(filepath.Dir(configDir), 0o755); err != nil {
		return fmt.Errorf("create config parent: %w", err)
	}

	if err := copyDirRecursive(tempConfigDir, configDir); err != nil {
		return fmt.Errorf("copy configuration: %w", err)
	}

	_ = os.RemoveAll(filepath.Join(configDir, ".git"))

	if err := replaceWithSymlink(installSymlink, symlinkTarget); err != nil {
		return err
	}

	gitScript := fmt.Sprintf(
		"cd %s && git init -b main && git remote add origin %s && git add -A && "+
			"git -c user.name='NixOS Install' -c user.email='install@localhost' "+
			"commit -m 'Initial configuration' && git fetch origin && "+
			"git branch --set-upstream-to=origin/main main",
		configDir, repoURL)
	if ok, err := r.Run("nix-shell", "-p", "git", "--run", gitScript); err != nil || !ok {
		log.Warn("git repository initialization failed, continuing", "err", err)
	}

	// The user does not exist yet on the live ISO, so chown by UID:GID.
	uidGid := fmt.Sprintf("%d:%d", primaryUserUID, primaryUserGID)

	if ok, err := r.Run("chown", uidGid, filepath.Dir(configDir)); err != nil || !ok {
		log.Warn("failed to set ownership on config parent directory")
	}

	if ok, err := r.Run("chown", "-R", uidGid, configDir); err != nil || !ok {
		log.Warn("failed to set ownership on config directory")
	}

	ok, err = r.Run("nixos-install", "--flake", configDir+"#"+hostname, "--no-root-passwd")
	if err != nil {
		return err
	}

	if !ok {
		r.StepFailed(StepNixos, "nixos-install failed", "Installation")
		r.Done(false)

		return nil
	}

	r.StepComplete(StepNixos)

	// Step 7: set the user password inside the installed system.
	r.Out("Setting up user account...")

	escaped := strings.ReplaceAll(password, "'", `'"'"'`)
	chpasswd := fmt.Sprintf("echo '%s:%s' | nixos-enter --root /mnt -c 'chpasswd'", username, escaped)

	ok, err = RunSensitive(r.Context(), r.Chan(), "sh", "-c", chpasswd)
	if err != nil {
		return err
	}

	if !ok {
		r.Out("Warning: Failed to set user password. You can set it after first boot with 'passwd'.")
	}

	r.StepComplete(StepUser)

	r.Out("\n")
	r.Out("Installation complete!")
	r.Out("")
	r.Out("Next steps:")
	r.Out("  1. Reboot: reboot")
	r.Out("  2. Enter your LUKS passphrase at boot")
	r.Out("  3. Select a shell from the boot menu")
	r.Outf("  4. Login as '%s' with your chosen password", username)

	r.Done(true)

	return nil
}

// UpdateDiskDevice rewrites every disko device declaration to the new disk.
func UpdateDiskDevice(content, disk string) string {
	replacement := fmt.Sprintf("device = %q", disk)

	result := diskDeviceRe.ReplaceAllString(content, replacement)
	if result == content && !strings.Contains(content, replacement) {
		log.Warn("disk device replacement may have failed, pattern not found in disko config")
	}

	return result
}

// InjectLuksPasswordFile adds a passwordFile line after the cryptroot name
// declaration so disko can unlock without prompting.
func InjectLuksPasswordFile(content string) string {
	replacement := fmt.Sprintf("${1}\n              passwordFile = %q;", luksPasswordFile)

	return luksNameRe.ReplaceAllString(content, replacement)
}

// UpdateFlakeUsername sets (or replaces) the username argument of a host's
// mkNixosSystem entry. Returns the content unchanged for the default user.
func UpdateFlakeUsername(content, hostname, username string) string {
	if username == defaultUsername {
		return content
	}

	quoted := regexp.QuoteMeta(hostname)

	hasUsername := regexp.MustCompile(`(?s)` + quoted + ` = mkNixosSystem \{[^}]*username\s*=`)
	if hasUsername.MatchString(content) {
		replace := regexp.MustCompile(`(` + quoted + `\s*=\s*mkNixosSystem\s*\{[^}]*username\s*=\s*")[^"]*`)

		return replace.ReplaceAllString(content, "${1}"+username)
	}

	hostRe := regexp.MustCompile(`(?m)^(\s*)` + quoted + ` = mkNixosSystem \{\s*\n(\s*)hostname = "` + quoted + `";`)
	if hostRe.MatchString(content) {
		replacement := fmt.Sprintf("${1}%s = mkNixosSystem {\n${2}hostname = %q;\n${2}username = %q;", hostname, hostname, username)

		return hostRe.ReplaceAllString(content, replacement)
	}

	log.Warn("could not update flake.nix with username, pattern not found", "host", hostname)

	return content
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

func replaceWithSymlink(linkPath, target string) error {
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(linkPath), err)
	}

	// Symlinks to directories satisfy IsDir, so check the link itself first.
	if info, err := os.Lstat(linkPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 || !info.IsDir() {
			if err := os.Remove(linkPath); err != nil {
				return fmt.Errorf("remove existing %s: %w", linkPath, err)
			}
		} else if err := os.RemoveAll(linkPath); err != nil {
			return fmt.Errorf("remove existing directory %s: %w", linkPath, err)
		}
	}

	if err := os.Symlink(target, linkPath); err != nil {
		return fmt.Errorf("create symlink %s -> %s: %w", linkPath, target, err)
	}

	return nil
}

func copyDirRecursive(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		// Skip symlinks to avoid loops and external references.
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}

		if entry.IsDir() {
			if err := copyDirRecursive(srcPath, dstPath); err != nil {
				return err
			}

			continue
		}

		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)

	return err
}

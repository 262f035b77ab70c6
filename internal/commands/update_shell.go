// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

// Quickshell keeps running with its old store path after a rebuild while
// the shell commands point at the new one. Detect the mismatch and restart.

package commands

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

type shellType int

const (
	shellNoctalia shellType = iota
	shellIllogical
	shellCaelestia
)

func (s shellType) name() string {
	switch s {
	case shellNoctalia:
		return "Noctalia"
	case shellIllogical:
		return "Illogical Impulse"
	case shellCaelestia:
		return "Caelestia"
	}

	return "unknown"
}

func (s shellType) restartCommand() (string, []string) {
	switch s {
	case shellIllogical:
		return "quickshell", []string{"-c", "~/.config/quickshell/ii"}
	case shellCaelestia:
		return "caelestia-shell", nil
	default:
		return "noctalia-shell", nil
	}
}

func (s shellType) configSymlinkPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch s {
	case shellIllogical:
		return filepath.Join(home, ".config/quickshell/ii")
	case shellCaelestia:
		return filepath.Join(home, ".config/quickshell/caelestia-shell")
	default:
		return filepath.Join(home, ".config/quickshell/noctalia-shell")
	}
}

type runningShell struct {
	shellType   shellType
	runningPath string
	pid         int
}

// runningQuickshellInfo finds the running Quickshell process and the store
// path it was launched from.
func runningQuickshellInfo(ctx context.Context) *runningShell {
	output, err := Output(ctx, "pgrep", "-a", "quickshell")
	if err != nil || output == "" {
		return nil
	}

	for _, line := range strings.Split(output, "\n") {
		pidStr, cmd, found := strings.Cut(line, " ")
		if !found {
			continue
		}

		pid, err := strconv.Atoi(pidStr)
		if err != nil {
			continue
		}

		if info := parseQuickshellCommand(pid, cmd); info != nil {
			return info
		}
	}

	return nil
}

func parseQuickshellCommand(pid int, cmd string) *runningShell {
	// Noctalia: quickshell -p /nix/store/.../share/noctalia-shell
	if strings.Contains(cmd, "/noctalia-shell") {
		if path := extractPathArg(cmd, "-p"); path != "" {
			return &runningShell{shellType: shellNoctalia, runningPath: path, pid: pid}
		}
	}

	// Illogical points -c at a config dir; compare the binary path instead.
	if strings.Contains(cmd, "quickshell/ii") || (strings.Contains(cmd, "-c") && strings.Contains(cmd, "/ii")) {
		if path := extractQuickshellBinaryPath(cmd); path != "" {
			return &runningShell{shellType: shellIllogical, runningPath: path, pid: pid}
		}
	}

	if strings.Contains(cmd, "/caelestia-shell") {
		if path := extractPathArg(cmd, "-p"); path != "" {
			return &runningShell{shellType: shellCaelestia, runningPath: path, pid: pid}
		}
	}

	return nil
}

func extractPathArg(cmd, flag string) string {
	parts := strings.Fields(cmd)
	for i, part := range parts {
		if part == flag && i+1 < len(parts) {
			return parts[i+1]
		}
	}

	return ""
}

func extractQuickshellBinaryPath(cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) > 0 && strings.Contains(parts[0], "/nix/store/") {
		return parts[0]
	}

	return ""
}

// expectedShellPath resolves the store path the shell should run from
// after a rebuild.
func expectedShellPath(ctx context.Context, shell shellType) string {
	symlinkPath := shell.configSymlinkPath()
	if symlinkPath == "" {
		return ""
	}

	target, err := os.Readlink(symlinkPath)
	if err == nil {
		return target
	}

	// The illogical config dir may be a plain directory.
	if shell == shellIllogical {
		if path, err := Output(ctx, "which", "quickshell"); err == nil {
			return path
		}
	}

	return ""
}

// restartShellIfNeeded restarts the running Quickshell when its store path
// no longer matches the rebuilt system. Returns the shell name when a
// restart was attempted.
func restartShellIfNeeded(r *Runner) (string, error) {
	info := runningQuickshellInfo(r.Context())
	if info == nil {
		log.Debug("no Quickshell process running, skipping restart check")

		return "", nil
	}

	log.Info("found running shell",
		"shell", info.shellType.name(), "pid", info.pid, "path", info.runningPath)

	expected := expectedShellPath(r.Context(), info.shellType)
	if expected == "" {
		log.Warn("could not determine expected shell path", "shell", info.shellType.name())

		return "", nil
	}

	var needsRestart bool

	switch info.shellType {
	case shellIllogical:
		needsRestart = !strings.Contains(info.runningPath, expected) &&
			!strings.Contains(expected, info.runningPath)
	default:
		needsRestart = info.runningPath != expected
	}

	if !needsRestart {
		log.Info("shell paths match, no restart needed")

		return "", nil
	}

	r.Out("")
	r.Outf("  Restarting %s shell (store path changed)...", info.shellType.name())

	_, _, _, _ = RunCapture(r.Context(), "pkill", "-x", "quickshell")

	time.Sleep(500 * time.Millisecond)

	cmd, args := info.shellType.restartCommand()

	if CommandExists(r.Context(), "hyprctl") {
		execCmd := cmd
		if len(args) > 0 {
			execCmd = cmd + " " + strings.Join(args, " ")
		}

		_, _, _, _ = RunCapture(r.Context(), "hyprctl", "dispatch", "exec", execCmd)
	} else {
		launchArgs := append([]string{cmd}, args...)
		_, _, _, _ = RunCapture(r.Context(), "nohup", launchArgs...)
	}

	time.Sleep(2 * time.Second)

	if runningQuickshellInfo(r.Context()) != nil {
		log.Info("shell restarted successfully")
	} else {
		log.Warn("shell may not have restarted properly")
	}

	return info.shellType.name(), nil
}

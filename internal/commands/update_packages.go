// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"fmt"
	"strconv"
	"strings"
)

// PackageChange is one package version transition reported by nvd.
type PackageChange struct {
	Name       string
	OldVersion string
	NewVersion string
}

// PackageCompareResult holds the parsed nvd diff output.
type PackageCompareResult struct {
	Changes        []PackageChange
	ClosureSummary string
}

// packageChangesFromHistory compares the current system generation to the
// previous one using nvd.
func packageChangesFromHistory(r *Runner) (PackageCompareResult, error) {
	current, err := Output(r.Context(), "readlink", "/nix/var/nix/profiles/system")
	if err != nil {
		r.Out("    Could not read current generation")

		return PackageCompareResult{}, nil
	}

	// Profile links are named system-N-link.
	genNum := 0
	if parts := strings.Split(current, "-"); len(parts) > 1 {
		genNum, _ = strconv.Atoi(parts[1])
	}

	if genNum <= 1 {
		r.Out("    No previous generation to compare")

		return PackageCompareResult{}, nil
	}

	prevGen := genNum - 1
	currentPath := fmt.Sprintf("/nix/var/nix/profiles/system-%d-link", genNum)
	prevPath := fmt.Sprintf("/nix/var/nix/profiles/system-%d-link", prevGen)

	if !fileExists(prevPath) {
		r.Out("    Previous generation not found")

		return PackageCompareResult{}, nil
	}

	r.Outf("    Comparing generation %d → %d", prevGen, genNum)

	ok, stdout, _, err := RunCapture(r.Context(), "nvd", "diff", prevPath, currentPath)
	if err != nil {
		return PackageCompareResult{}, err
	}

	if !ok {
		r.Out("    nvd diff failed")

		return PackageCompareResult{}, nil
	}

	return parseNvdOutput(stdout, r), nil
}

// parseNvdOutput extracts version changes and the closure summary from
// nvd diff output. Update lines look like:
//
//	[U.]  #015  firefox    146.0 -> 146.0.1
//
// and the closure line like:
//
//	Closure size: 2478 -> 2478 (8 paths added, ...).
func parseNvdOutput(stdout string, r *Runner) PackageCompareResult {
	var result PackageCompareResult

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)

		if summary, ok := strings.CutPrefix(line, "Closure size:"); ok {
			result.ClosureSummary = strings.TrimSuffix(strings.TrimSpace(summary), ".")

			continue
		}

		if !strings.HasPrefix(line, "[U") {
			continue
		}

		change, ok := parseNvdUpdateLine(line)
		if !ok {
			continue
		}

		if r != nil {
			r.Outf("    %s: %s → %s", change.Name, change.OldVersion, change.NewVersion)
		}

		result.Changes = append(result.Changes, change)
	}

	return result
}

func parseNvdUpdateLine(line string) (PackageChange, bool) {
	arrowPos := strings.Index(line, " -> ")
	if arrowPos < 0 {
		return PackageChange{}, false
	}

	hashPos := strings.Index(line, "#")
	if hashPos < 0 {
		return PackageChange{}, false
	}

	afterHash := line[hashPos:]

	spacePos := strings.IndexFunc(afterHash, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
	if spacePos < 0 {
		return PackageChange{}, false
	}

	rest := strings.TrimSpace(afterHash[spacePos:])

	beforeArrow := rest
	if idx := strings.Index(rest, " -> "); idx >= 0 {
		beforeArrow = rest[:idx]
	}

	parts := strings.Fields(beforeArrow)
	if len(parts) < 2 {
		return PackageChange{}, false
	}

	name := parts[0]
	oldVer := strings.TrimSuffix(parts[len(parts)-1], ",")

	afterFields := strings.FieldsFunc(line[arrowPos+4:], func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(afterFields) == 0 {
		return PackageChange{}, false
	}

	newVer := afterFields[0]

	if name == "" || oldVer == "" || newVer == "" {
		return PackageChange{}, false
	}

	return PackageChange{Name: name, OldVersion: oldVer, NewVersion: newVer}, true
}

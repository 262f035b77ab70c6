// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package commands

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParsedError is a user-facing classification of a failed command's stderr.
type ParsedError struct {
	// Summary is a short one-line description.
	Summary string
	// Detail optionally carries extracted context (file:line, repo, path).
	Detail string
	// Suggestion is an actionable next step.
	Suggestion string
}

func (e *ParsedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Summary, e.Detail)
	}

	return e.Summary
}

// ErrorContext names the operation that produced the stderr being classified.
type ErrorContext struct {
	Operation string
}

// ParseStderr classifies raw stderr text. Recognizers run in order of
// specificity and the first match wins; exit codes are never consulted.
func ParseStderr(stderr string, ctx ErrorContext) *ParsedError {
	for _, check := range errorChecks {
		if err := check(stderr); err != nil {
			return err
		}
	}

	return genericError(stderr, ctx)
}

var errorChecks = []func(string) *ParsedError{
	checkGitHubAPIError,
	checkNetworkError,
	checkNixEvalError,
	checkNixBuildError,
	checkGitError,
	checkPermissionError,
}

func genericError(stderr string, ctx ErrorContext) *ParsedError {
	firstError := "Unknown error"

	for _, line := range strings.Split(stderr, "\n") {
		if strings.Contains(line, "error:") {
			firstError = line

			break
		}
	}

	if firstError == "Unknown error" {
		for _, line := range strings.Split(stderr, "\n") {
			if strings.TrimSpace(line) != "" {
				firstError = line

				break
			}
		}
	}

	detail := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(firstError), "error:"))
	if detail == "Unknown error" {
		detail = ""
	}

	return &ParsedError{
		Summary:    fmt.Sprintf("%s failed", ctx.Operation),
		Detail:     detail,
		Suggestion: "Check the output above for details.",
	}
}

var (
	githubHTTPRe  = regexp.MustCompile(`(?i)HTTP\s+error\s+(\d{3})`)
	githubInputRe = regexp.MustCompile(`github(?:\.com)?[:/]([^/\s']+/[^/\s']+)`)
)

func checkGitHubAPIError(stderr string) *ParsedError {
	caps := githubHTTPRe.FindStringSubmatch(stderr)
	if caps == nil {
		return nil
	}

	code, err := strconv.Atoi(caps[1])
	if err != nil {
		return nil
	}

	var summary, suggestion string

	switch code {
	case 502, 503, 504:
		summary = fmt.Sprintf("GitHub API timeout (HTTP %d)", code)
		suggestion = "GitHub's API is temporarily unavailable. Try again in a few minutes."
	case 403:
		summary = "GitHub API rate limit exceeded"
		suggestion = "You've hit GitHub's rate limit. Wait an hour or set GITHUB_TOKEN."
	case 401:
		summary = "GitHub authentication failed"
		suggestion = "Check your GITHUB_TOKEN or SSH key configuration."
	case 404:
		summary = "GitHub repository not found"
		suggestion = "The flake input references a non-existent or private repository."
	default:
		summary = fmt.Sprintf("GitHub API error (HTTP %d)", code)
		suggestion = "GitHub returned an unexpected error. Try again later."
	}

	detail := ""
	if input := githubInputRe.FindStringSubmatch(stderr); input != nil {
		detail = "Repository: " + strings.TrimSuffix(input[1], ".git")
	}

	return &ParsedError{Summary: summary, Detail: detail, Suggestion: suggestion}
}

func checkNetworkError(stderr string) *ParsedError {
	patterns := []struct {
		pattern, summary, suggestion string
	}{
		{"could not resolve host", "DNS resolution failed", "Check your internet connection. Try: ping github.com"},
		{"connection refused", "Connection refused", "The remote server refused the connection. Check if it's online."},
		{"connection timed out", "Connection timed out", "Network request timed out. Check your connection and try again."},
		{"network is unreachable", "Network unreachable", "No network connectivity. Check your internet connection."},
		{"no route to host", "Cannot reach host", "Network routing issue. Check your connection."},
	}

	lower := strings.ToLower(stderr)
	for _, p := range patterns {
		if strings.Contains(lower, p.pattern) {
			return &ParsedError{Summary: p.summary, Suggestion: p.suggestion}
		}
	}

	return nil
}

var nixEvalRe = regexp.MustCompile(`(?s)error:[^\n]*\n.*?at\s+(/[^:]+):(\d+):`)

func checkNixEvalError(stderr string) *ParsedError {
	caps := nixEvalRe.FindStringSubmatch(stderr)
	if caps == nil {
		return nil
	}

	errorMsg := "Evaluation error"

	for _, line := range strings.Split(stderr, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "error:") {
			errorMsg = strings.TrimSpace(strings.TrimPrefix(trimmed, "error:"))

			break
		}
	}

	return &ParsedError{
		Summary:    "Nix evaluation error",
		Detail:     fmt.Sprintf("%s\n  at %s:%s", errorMsg, caps[1], caps[2]),
		Suggestion: "Check the Nix expression at the indicated location.",
	}
}

var nixBuildRe = regexp.MustCompile(`builder for '([^']+)' failed`)

func checkNixBuildError(stderr string) *ParsedError {
	if !strings.Contains(stderr, "builder for") || !strings.Contains(stderr, "failed") {
		return nil
	}

	detail := ""

	if caps := nixBuildRe.FindStringSubmatch(stderr); caps != nil {
		drv := caps[1]
		if idx := strings.LastIndex(drv, "/"); idx >= 0 {
			drv = drv[idx+1:]
		}

		detail = "Failed: " + strings.TrimSuffix(drv, ".drv")
	}

	return &ParsedError{
		Summary:    "Nix build failed",
		Detail:     detail,
		Suggestion: "Check the build output above for compiler or dependency errors.",
	}
}

func checkGitError(stderr string) *ParsedError {
	patterns := []struct {
		pattern, summary, suggestion string
	}{
		{"permission denied (publickey)", "SSH authentication failed", "Ensure your SSH key is added to the agent. With 1Password: check agent settings."},
		{"fatal: not a git repository", "Not a git repository", "Initialize git or check you're in the correct directory."},
		{"could not read from remote", "Git remote access failed", "Check your SSH key or network connection."},
		{"merge conflict", "Git merge conflict", "Resolve conflicts manually: git status shows affected files."},
		{"your local changes would be overwritten", "Uncommitted local changes", "Commit or stash your changes first: git stash"},
	}

	lower := strings.ToLower(stderr)
	for _, p := range patterns {
		if strings.Contains(lower, p.pattern) {
			return &ParsedError{Summary: p.summary, Suggestion: p.suggestion}
		}
	}

	return nil
}

var permissionRe = regexp.MustCompile(`(?i)permission denied[:\s]*([^\n]*)`)

func checkPermissionError(stderr string) *ParsedError {
	caps := permissionRe.FindStringSubmatch(stderr)
	if caps == nil {
		return nil
	}

	return &ParsedError{
		Summary:    "Permission denied",
		Detail:     strings.TrimSpace(caps[1]),
		Suggestion: "Try running with sudo or check file ownership.",
	}
}

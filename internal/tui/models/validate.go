// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Usernames reserved by the system; NixOS refuses to create these.
var reservedUsernames = []string{
	"root", "nobody", "daemon", "bin", "sys", "sync", "games", "man",
	"lp", "mail", "news", "uucp", "proxy", "www-data", "backup", "list",
	"irc", "gnats", "systemd-network", "systemd-resolve",
}

// Input length limits following useradd and the kernel hostname limit.
const (
	maxUsernameLength = 32
	maxHostnameLength = 63
	minPasswordLength = 8
)

// Validation errors with stable messages for display.
var (
	errUsernameEmpty    = errors.New("username cannot be empty")
	errUsernameTooLong  = fmt.Errorf("username must be at most %d characters", maxUsernameLength)
	errUsernameStart    = errors.New("username must start with a lowercase letter")
	errUsernameChars    = errors.New("username may only contain lowercase letters, digits, '_' and '-'")
	errPasswordEmpty    = errors.New("password cannot be empty")
	errPasswordTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	errPasswordMismatch = errors.New("passwords do not match")
	errHostnameEmpty    = errors.New("hostname cannot be empty")
	errHostnameTooLong  = fmt.Errorf("hostname must be at most %d characters", maxHostnameLength)
	errHostnameStart    = errors.New("hostname must start with a letter or digit")
	errHostnameChars    = errors.New("hostname may only contain letters, digits and '-'")
	errHostnameExists   = errors.New("a host with this name already exists")
)

// ValidateUsername checks a Unix username the way useradd would.
func ValidateUsername(name string) error {
	if name == "" {
		return errUsernameEmpty
	}

	if len(name) > maxUsernameLength {
		return errUsernameTooLong
	}

	first := name[0]
	if first < 'a' || first > 'z' {
		return errUsernameStart
	}

	for _, r := range name {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !valid {
			return errUsernameChars
		}
	}

	if slices.Contains(reservedUsernames, name) {
		return fmt.Errorf("username %q is reserved", name)
	}

	return nil
}

// ValidatePassword checks password strength and confirmation.
func ValidatePassword(password, confirm string) error {
	if password == "" {
		return errPasswordEmpty
	}

	if len(password) < minPasswordLength {
		return errPasswordTooShort
	}

	if password != confirm {
		return errPasswordMismatch
	}

	return nil
}

// ValidateHostname checks a hostname against RFC rules and the hosts
// already present in the configuration.
func ValidateHostname(name string, existing []string) error {
	if name == "" {
		return errHostnameEmpty
	}

	if len(name) > maxHostnameLength {
		return errHostnameTooLong
	}

	first := rune(name[0])
	if !isAlnum(first) {
		return errHostnameStart
	}

	for _, r := range name {
		if !isAlnum(r) && r != '-' {
			return errHostnameChars
		}
	}

	for _, host := range existing {
		if strings.EqualFold(host, name) {
			return errHostnameExists
		}
	}

	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

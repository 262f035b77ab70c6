// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		wantErr  string
	}{
		{"valid simple", "alice", ""},
		{"valid with digits and dash", "user-42", ""},
		{"valid with underscore", "build_bot", ""},
		{"empty", "", "cannot be empty"},
		{"too long", strings.Repeat("a", 33), "at most 32"},
		{"starts with digit", "1alice", "must start with a lowercase letter"},
		{"starts with uppercase", "Alice", "must start with a lowercase letter"},
		{"invalid character", "al.ice", "may only contain"},
		{"reserved", "root", `"root" is reserved`},
		{"reserved system account", "systemd-network", "is reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateUsername(tt.username)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePassword("correcthorse", "correcthorse"))
	require.ErrorContains(t, ValidatePassword("", ""), "cannot be empty")
	require.ErrorContains(t, ValidatePassword("short", "short"), "at least 8")
	require.ErrorContains(t, ValidatePassword("correcthorse", "wronghorse"), "do not match")
}

func TestValidateHostname(t *testing.T) {
	t.Parallel()

	existing := []string{"desktop", "zephyr"}

	tests := []struct {
		name     string
		hostname string
		wantErr  string
	}{
		{"valid", "laptop", ""},
		{"valid mixed case", "MyHost2", ""},
		{"valid with dash", "my-host", ""},
		{"empty", "", "cannot be empty"},
		{"too long", strings.Repeat("a", 64), "at most 63"},
		{"starts with dash", "-host", "must start with a letter or digit"},
		{"invalid character", "my_host", "may only contain"},
		{"duplicate", "desktop", "already exists"},
		{"duplicate case insensitive", "DESKTOP", "already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateHostname(tt.hostname, existing)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

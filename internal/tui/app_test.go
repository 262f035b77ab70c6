// SPDX-FileCopyrightText: 2025 The Forge Authors
// SPDX-License-Identifier: EUPL-1.2

package tui

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nixforge/forge/internal/commands"
	"github.com/nixforge/forge/internal/tui/models"
)

func newTestApp(t *testing.T, screen int, data any) *App {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	return NewApp(context.Background(), screen, data)
}

func TestPendingOptions(t *testing.T) {
	tests := []struct {
		name    string
		pending commands.PendingUpdates
		want    []string
	}{
		{
			name:    "config only",
			pending: commands.PendingUpdates{NixosConfig: true},
			want:    []string{"View NixOS updates", "Dismiss"},
		},
		{
			name:    "apps only",
			pending: commands.PendingUpdates{AppProfiles: true},
			want:    []string{"Update app profiles", "Dismiss"},
		},
		{
			name:    "both",
			pending: commands.PendingUpdates{NixosConfig: true, AppProfiles: true},
			want:    []string{"View NixOS updates", "Update app profiles", "Update all", "Dismiss"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, models.MenuScreen, nil)
			app.pending = &tt.pending

			require.Equal(t, tt.want, app.pendingOptions())
		})
	}
}

func TestHandleCommandShowsPendingDialogOnMenu(t *testing.T) {
	app := newTestApp(t, models.MenuScreen, nil)
	app.startupCheckRunning = true

	msg := commands.Message{
		Kind: commands.UpdatesAvailable,
		Updates: &commands.PendingUpdates{
			NixosConfig: true,
			Commits:     []commands.Commit{{Hash: "abc1234", Message: "fix boot"}},
		},
	}

	_, cmd := app.handleCommand(msg)
	require.NotNil(t, cmd)
	require.False(t, app.startupCheckRunning)
	require.NotNil(t, app.pending)
	require.True(t, app.pending.NixosConfig)
}

func TestHandleCommandNoDialogWithoutUpdates(t *testing.T) {
	app := newTestApp(t, models.MenuScreen, nil)
	app.startupCheckRunning = true

	_, _ = app.handleCommand(commands.Message{
		Kind:    commands.UpdatesAvailable,
		Updates: &commands.PendingUpdates{},
	})

	require.False(t, app.startupCheckRunning)
	require.Nil(t, app.pending)
}

func TestNavigateCreatesFreshModel(t *testing.T) {
	app := newTestApp(t, models.MenuScreen, nil)
	first := app.contentModel

	_, _ = app.navigate(models.AppsScreen, models.AppsData{Action: models.AppsMenu})
	require.Equal(t, models.AppsScreen, app.currentScreen)
	require.NotSame(t, first, app.contentModel)

	_, _ = app.navigate(models.MenuScreen, models.MenuData{Selected: 2})
	require.Equal(t, models.MenuScreen, app.currentScreen)
}

func TestScreenLog(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	log, err := OpenScreenLog()
	require.NoError(t, err)
	require.NotEmpty(t, log.Path())

	log.Write("step one")
	log.Write("step two")
	log.Close()

	content, err := os.ReadFile(log.Path())
	require.NoError(t, err)
	require.Contains(t, string(content), "Forge Screen Log")
	require.Contains(t, string(content), "step one\n")
	require.Contains(t, string(content), "step two\n")
}

func TestScreenLogNilSafe(t *testing.T) {
	t.Parallel()

	var log *ScreenLog

	require.Empty(t, log.Path())
	log.Write("ignored")
	log.Close()
}

func TestAppViewGoodbye(t *testing.T) {
	app := newTestApp(t, models.MenuScreen, nil)
	app.quitting = true

	require.True(t, strings.Contains(app.View(), strings.TrimSpace(models.GoodbyeMessage)))
}

// Copyright (c) 2025 Planly Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.planly.app", cfg.Server.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 90*time.Second, cfg.BrowserDeadline())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
version = "1.0.0"

[server]
base_url = "http://localhost:8000"
request_timeout_secs = 10

[auth]
browser_deadline_secs = 120

[ui]
theme = "light"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 120*time.Second, cfg.BrowserDeadline())
	assert.Equal(t, "light", cfg.UI.Theme)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.BaseURL, cfg.Server.BaseURL)
}

func TestLoadFromPath_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \"http://localhost:9999\"\n"), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.Server.BaseURL)
	assert.Equal(t, Default().Server.RequestTimeoutSecs, cfg.Server.RequestTimeoutSecs)
	assert.Equal(t, Default().Log.Level, cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad base URL",
			mutate:  func(c *Config) { c.Server.BaseURL = "not a url" },
			wantErr: "server.base_url",
		},
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.Server.BaseURL = "ftp://example.com" },
			wantErr: "server.base_url",
		},
		{
			name:    "timeout out of range",
			mutate:  func(c *Config) { c.Server.RequestTimeoutSecs = 9999 },
			wantErr: "server.request_timeout_secs",
		},
		{
			name:    "deadline too short",
			mutate:  func(c *Config) { c.Auth.BrowserDeadlineSecs = 1 },
			wantErr: "auth.browser_deadline_secs",
		},
		{
			name:    "unknown theme",
			mutate:  func(c *Config) { c.UI.Theme = "solarized" },
			wantErr: "ui.theme",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PLANLY_API_URL", "http://localhost:8000/")
	t.Setenv("PLANLY_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Server.BaseURL = "http://localhost:8000"
	cfg.UI.CompactMode = true
	require.NoError(t, SaveToPath(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.BaseURL, loaded.Server.BaseURL)
	assert.True(t, loaded.UI.CompactMode)
}

func TestGlobalSetAndReset(t *testing.T) {
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	cfg := Default()
	cfg.UI.Theme = "light"
	SetGlobal(cfg)

	assert.Equal(t, "light", Global().UI.Theme)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveToPath(Default(), path))

	var mu sync.Mutex
	var got *Config
	w, err := NewWatcher(path, func(c *Config) {
		mu.Lock()
		got = c
		mu.Unlock()
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch())

	updated := Default()
	updated.UI.Theme = "light"
	require.NoError(t, SaveToPath(updated, path))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.UI.Theme == "light"
	}, 5*time.Second, 50*time.Millisecond)
}

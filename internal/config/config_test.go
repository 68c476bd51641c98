// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears SAWMON_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"SAWMON_API_URL", "SAWMON_DATA_DIR", "SAWMON_STORAGE_BACKEND",
		"SAWMON_STORAGE_PASSPHRASE", "SAWMON_LOG_LEVEL", "SAWMON_LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().API, cfg.API)
}

func TestLoad_TOML(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".sawmon", "config.toml")
	writeFile(t, path, `
[api]
base_url = "https://saw.example.com/"
max_retries = 5

[log]
level = "debug"
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://saw.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5, cfg.API.MaxRetries)
	assert.Equal(t, 30, cfg.API.TimeoutSecs, "filled from defaults")
	assert.Equal(t, "debug", cfg.Log.Level)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadFromPath_MissingSectionsKeepDefaults(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "partial.toml")
	writeFile(t, path, "[auth]\nmax_attempts = 0\n")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Auth.MaxAttempts, "explicit zero turns the lockout off")
	assert.Equal(t, 900, cfg.Auth.LockoutSecs)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 10, cfg.Audit.MaxSizeMB)
}

func TestLoad_JSONFallback(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".sawmon", "config.json"), `{"storage":{"backend":"file"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
}

func TestLoad_BrokenFileReportsErrorWithDefaults(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".sawmon", "config.toml"), `[api`)

	cfg, err := Load()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
}

func TestLoad_InvalidFileValue(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".sawmon", "config.toml")
	writeFile(t, path, "[log]\nformat = \"xml\"\n")

	_, err := LoadFromPath(path)
	require.Error(t, err)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "log.format", verrs[0].Field)
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SAWMON_API_URL", "http://10.0.0.5:8000")
	t.Setenv("SAWMON_DATA_DIR", "/var/lib/sawmon")
	t.Setenv("SAWMON_STORAGE_PASSPHRASE", "hunter2")
	t.Setenv("SAWMON_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.API.BaseURL)
	assert.Equal(t, "/var/lib/sawmon", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.Encrypt)
	assert.Equal(t, "hunter2", cfg.Storage.Passphrase)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, "api.base_url"},
		{"no host", func(c *Config) { c.API.BaseURL = "http://" }, "api.base_url"},
		{"timeout", func(c *Config) { c.API.TimeoutSecs = 0 }, "api.timeout_secs"},
		{"retries", func(c *Config) { c.API.MaxRetries = 11 }, "api.max_retries"},
		{"negative rps", func(c *Config) { c.API.RequestsPerSecond = -1 }, "api.requests_per_second"},
		{"burst", func(c *Config) { c.API.Burst = 0 }, "api.burst"},
		{"backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"attempts", func(c *Config) { c.Auth.MaxAttempts = -1 }, "auth.max_attempts"},
		{"lockout", func(c *Config) { c.Auth.LockoutSecs = 90000 }, "auth.lockout_secs"},
		{"audit size", func(c *Config) { c.Audit.MaxSizeMB = 2048 }, "audit.max_size_mb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}

	cfg := Default()
	cfg.API.RequestsPerSecond = 0
	assert.NoError(t, cfg.Validate(), "zero rps disables the limit")
}

func TestSaveAndReload(t *testing.T) {
	home := isolate(t)
	cfg := Default()
	cfg.API.BaseURL = "http://saw-01:8000"
	cfg.Storage.Encrypt = true
	require.NoError(t, Save(cfg))

	path, err := ConfigPathTOML()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sawmon", "config.toml"), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.API, loaded.API)
	assert.True(t, loaded.Storage.Encrypt)

	jsonPath := filepath.Join(home, "out.json")
	require.NoError(t, SaveJSON(cfg, jsonPath))
	fromJSON, err := LoadFromPath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.API.BaseURL, fromJSON.API.BaseURL)
}

func TestConfig_DataDir(t *testing.T) {
	home := isolate(t)

	cfg := Default()
	dir, err := cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sawmon"), dir)

	cfg.Storage.DataDir = "~/saw-data"
	dir, err = cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "saw-data"), dir)
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("api.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", v)

	require.NoError(t, cfg.Set("api.timeout_secs", "45"))
	assert.Equal(t, 45, cfg.API.TimeoutSecs)
	require.NoError(t, cfg.Set("api.requests-per-second", "2.5"))
	assert.Equal(t, 2.5, cfg.API.RequestsPerSecond)
	require.NoError(t, cfg.Set("storage.encrypt", "yes"))
	assert.True(t, cfg.Storage.Encrypt)

	_, err = cfg.Get("api.nope")
	assert.Error(t, err)
	_, err = cfg.Get("api")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("api.max_retries", "many"))

	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestConfig_StringRedactsPassphrase(t *testing.T) {
	cfg := Default()
	cfg.Storage.Passphrase = "hunter2"
	s := cfg.String()
	assert.False(t, strings.Contains(s, "hunter2"))
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "hunter2", cfg.Storage.Passphrase)
}

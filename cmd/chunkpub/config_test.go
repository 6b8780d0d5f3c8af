package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunkpub.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
url = "https://example.invalid/api/0"
org = "acme"
project = "spacetools"
max_rounds = 4
`)

	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/api/0", cfg.URL)
	assert.Equal(t, "acme", cfg.Organization)
	assert.Equal(t, "spacetools", cfg.Project)
	assert.Equal(t, 4, cfg.MaxRounds)
	assert.Empty(t, cfg.Token)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
url = "https://file.invalid"
org = "from-file"
`)
	t.Setenv("CHUNKPUB_ORG", "from-env")
	t.Setenv("CHUNKPUB_TOKEN", "env-token")
	t.Setenv("CHUNKPUB_MAX_ROUNDS", "9")
	t.Setenv("CHUNKPUB_MAX_ATTEMPTS", "3")

	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "https://file.invalid", cfg.URL)
	assert.Equal(t, "from-env", cfg.Organization)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, 9, cfg.MaxRounds)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestLoadConfig_MissingOptionalFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), false)
	require.NoError(t, err)
	assert.Empty(t, cfg.URL)
}

func TestLoadConfig_MissingRequiredFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), true)
	require.Error(t, err)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := writeConfig(t, `url = `)
	_, err := loadConfig(path, false)
	require.Error(t, err)
}

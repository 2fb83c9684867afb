package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caseline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigResolvesEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_CASELINE_PORT", "9090")
	t.Setenv("TEST_GEMINI_KEY", "secret-key")

	path := writeConfig(t, `
server:
  host: "${TEST_CASELINE_HOST:127.0.0.1}"
  port: ${TEST_CASELINE_PORT:8080}
backends:
  - name: "gemini"
    provider: "gemini"
    model: "gemini-2.0-flash"
    api_key: "${TEST_GEMINI_KEY}"
fallback:
  enabled: true
  default: "gemini"
  order:
    - "gemini"
`)

	cfg, cfgPath, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfgPath)
	// Set variables win; unset ones fall back to the inline default.
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "secret-key", cfg.Backends[0].APIKey)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
backends:
  - name: "gemini"
    provider: "gemini"
    model: "gemini-2.0-flash"
    api_key: "k"
`)

	cfg, _, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Realtime.HeartbeatInterval)
	assert.Equal(t, 90*time.Second, cfg.Realtime.ConnectionTimeout)
	assert.Equal(t, 60*time.Second, cfg.Fallback.PerBackendTimeout)
	assert.Equal(t, "memory", cfg.Affinity.Type)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "data/caseline.db", cfg.Database.DBName)
}

func TestLoadConfigRejectsDuplicateBackendNames(t *testing.T) {
	path := writeConfig(t, `
backends:
  - name: "gemini"
    provider: "gemini"
  - name: "gemini"
    provider: "openai"
`)

	_, _, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate backend name")
}

func TestLoadConfigRejectsUnknownFallbackReferences(t *testing.T) {
	path := writeConfig(t, `
backends:
  - name: "gemini"
    provider: "gemini"
fallback:
  order:
    - "groq"
`)
	_, _, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")

	path = writeConfig(t, `
backends:
  - name: "gemini"
    provider: "gemini"
fallback:
  default: "groq"
`)
	_, _, err = LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in backend list")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

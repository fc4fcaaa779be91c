package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ouicomply-mcp", cfg.Server.Name)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "team_memory.json", cfg.MemoryPath)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mistral:
  apiKey: file-key
  model: mistral-small-latest
server:
  port: 8080
logLevel: debug
retry:
  maxAttempts: 5
  baseDelaySeconds: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Mistral.APIKey)
	assert.Equal(t, "mistral-small-latest", cfg.Mistral.Model)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1.5, cfg.Retry.BaseDelay)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mistral:\n  apiKey: file-key\n"), 0o644))

	t.Setenv("MISTRAL_KEY", "env-key")
	t.Setenv("MCP_SERVER_PORT", "9090")
	t.Setenv("RETRY_MAX_ATTEMPTS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Mistral.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ouicomply-mcp", cfg.Server.Name)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mistral: ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Mistral.APIKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestRetryConfigConversion(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Retry.MaxAttempts = 4
	cfg.Retry.BaseDelay = 0.25
	cfg.Retry.MaxDelay = 10
	cfg.Retry.BackoffFactor = 3

	rc := cfg.RetryConfig()
	assert.Equal(t, 4, rc.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, rc.BaseDelay)
	assert.Equal(t, 10*time.Second, rc.MaxDelay)
	assert.Equal(t, 3.0, rc.BackoffFactor)
}

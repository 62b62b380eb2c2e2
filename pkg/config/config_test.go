package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL_NAME", "claude-sonnet")
	t.Setenv("STORAGE_POSTGRES_DSN", "postgres://localhost/agentcore")
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("SEARCH_PROVIDER", "baidu") // avoid google's extra required fields
	t.Setenv("AUTH_PROVIDER", "none")
}

func TestLoadAppliesDefaultsAndEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SANDBOX_TTL_MINUTES", "45")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, float32(0.7), cfg.LLM.Temperature) // default
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)            // default
	assert.Equal(t, 45, cfg.Sandbox.TTLMinutes)         // overridden
	assert.Equal(t, "localhost:6379", cfg.Redis.RedisAddr())
	assert.Equal(t, AuthProviderNone, cfg.Auth.Provider)
	assert.Equal(t, 10, cfg.Auth.PasswordHashRounds)
}

func TestLoadMissingRequiredFieldFails(t *testing.T) {
	t.Setenv("SEARCH_PROVIDER", "baidu")
	t.Setenv("AUTH_PROVIDER", "none")
	// LLM_API_KEY intentionally unset
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsUnknownSearchProvider(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SEARCH_PROVIDER", "altavista")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadLocalAuthRequiresCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTH_PROVIDER", "local")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("AUTH_LOCAL_USERNAME", "admin")
	t.Setenv("AUTH_LOCAL_PASSWORD", "hunter2")
	_, err = Load("")
	require.NoError(t, err)
}

func TestSandboxTTL(t *testing.T) {
	cfg := SandboxConfig{TTLMinutes: 30}
	assert.Equal(t, 30*60, int(cfg.TTL().Seconds()))
}

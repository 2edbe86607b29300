package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlindermeir/ami0/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "ami0", cfg.Logger.ServiceName)

	assert.Equal(t, 10, cfg.Agent.HistoryWindow)
	assert.Equal(t, 0, cfg.Agent.MaxTurns)
	assert.True(t, cfg.Agent.ConfirmDefault)
	assert.Equal(t, config.ProviderGemini, cfg.Agent.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Agent.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.Agent.LLM.APITimeout)

	assert.True(t, cfg.Apps.Echo.Enabled, "echo is the only app enabled out of the box")
	assert.False(t, cfg.Apps.SSH.Enabled)
	assert.False(t, cfg.Apps.Browser.Enabled)
	assert.True(t, cfg.Apps.Browser.Headless)
}

func TestSSHConfig_Addr(t *testing.T) {
	cfg := config.SSHConfig{Host: "lab.internal", Port: 2222}
	assert.Equal(t, "lab.internal:2222", cfg.Addr())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
agent:
  history_window: 4
  confirm_default: false
  llm:
    model: gemini-2.5-pro
    api_key: file-key
apps:
  ssh:
    enabled: true
    host: lab.internal
    username: operator
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Agent.HistoryWindow)
	assert.False(t, cfg.Agent.ConfirmDefault)
	assert.Equal(t, "gemini-2.5-pro", cfg.Agent.LLM.Model)
	assert.Equal(t, "file-key", cfg.Agent.LLM.APIKey)
	assert.True(t, cfg.Apps.SSH.Enabled)
	assert.Equal(t, "lab.internal:2222", cfg.Apps.SSH.Addr(), "file values merge over defaults")

	// Untouched sections keep their defaults.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Apps.Echo.Enabled)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("AMI0_AGENT_LLM_API_KEY", "env-key")
	t.Setenv("AMI0_AGENT_HISTORY_WINDOW", "6")
	t.Setenv("AMI0_APPS_BROWSER_ENABLED", "true")

	cfg, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "an explicitly named missing file is an error")

	cfg, err = config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Agent.LLM.APIKey)
	assert.Equal(t, 6, cfg.Agent.HistoryWindow)
	assert.True(t, cfg.Apps.Browser.Enabled)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Should return defaults when no sources are present", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())

		cfg, err := Load(Options{SkipDotEnv: true})
		require.NoError(t, err)

		assert.Equal(t, "@every 1h", cfg.Agent.Schedule)
		assert.Equal(t, "Kerala,IN", cfg.Agent.DefaultLocation)
		assert.Equal(t, ":8501", cfg.Dashboard.Addr)
		assert.Equal(t, 60*time.Second, cfg.Dashboard.CacheTTL)
		assert.Equal(t, "GOOGLE_API_KEY", cfg.Supervisor.CredentialEnv)
		assert.True(t, cfg.Supervisor.DashboardEnabled)
		assert.Equal(t, []string{"MODERATE", "HIGH", "EXTREME"}, cfg.Agent.AlertLevels)
	})

	t.Run("Should overlay the YAML file on defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "custom.yaml", `
agent:
  schedule: "@every 5m"
  memory_file: /data/memory_log.json
dashboard:
  cache_ttl: 30s
`)
		cfg, err := Load(Options{File: path, SkipDotEnv: true})
		require.NoError(t, err)

		assert.Equal(t, "@every 5m", cfg.Agent.Schedule)
		assert.Equal(t, "/data/memory_log.json", cfg.Agent.MemoryFile)
		assert.Equal(t, "control_file.json", cfg.Agent.ControlFile)
		assert.Equal(t, 30*time.Second, cfg.Dashboard.CacheTTL)
	})

	t.Run("Should fail when an explicit file is missing", func(t *testing.T) {
		_, err := Load(Options{File: filepath.Join(t.TempDir(), "nope.yaml"), SkipDotEnv: true})
		require.Error(t, err)
	})

	t.Run("Should map well-known and prefixed environment variables", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("HOME", t.TempDir())
		t.Setenv("GOOGLE_API_KEY", "g-key")
		t.Setenv("WEATHER_API_KEY", "w-key")
		t.Setenv("EMAIL_PORT", "2465")
		t.Setenv("EMAILS_TO_NOTIFY", "a@example.com, b@example.com")
		t.Setenv("CLIMATESENSE_AGENT_DEFAULT_LOCATION", "London,UK")
		t.Setenv("CLIMATESENSE_SUPERVISOR_WORKER", "/bin/worker --flag")

		cfg, err := Load(Options{SkipDotEnv: true})
		require.NoError(t, err)

		assert.Equal(t, "g-key", cfg.LLM.APIKey)
		assert.Equal(t, "w-key", cfg.Weather.APIKey)
		assert.Equal(t, 2465, cfg.Email.Port)
		assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.Recipients)
		assert.Equal(t, "London,UK", cfg.Agent.DefaultLocation)
		assert.Equal(t, []string{"/bin/worker", "--flag"}, cfg.Supervisor.Worker)
	})

	t.Run("Should load .env without overriding the environment", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		t.Setenv("HOME", t.TempDir())
		writeFile(t, dir, ".env", "NEWS_API_KEY=from-dotenv\nWEATHER_API_KEY=from-dotenv\n")
		t.Setenv("WEATHER_API_KEY", "from-env")
		t.Setenv("NEWS_API_KEY", "")
		require.NoError(t, os.Unsetenv("NEWS_API_KEY"))

		cfg, err := Load(Options{})
		require.NoError(t, err)

		assert.Equal(t, "from-dotenv", cfg.News.APIKey)
		assert.Equal(t, "from-env", cfg.Weather.APIKey)
	})

	t.Run("Should reject invalid values", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "bad.yaml", "weather:\n  units: kelvin\n")
		_, err := Load(Options{File: path, SkipDotEnv: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("Should reject a zero grace period", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "grace.yaml", "supervisor:\n  grace_period: 0s\n")
		_, err := Load(Options{File: path, SkipDotEnv: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestTransformEnvKey(t *testing.T) {
	t.Run("Should convert section and key", func(t *testing.T) {
		assert.Equal(t, "agent.memory_file", transformEnvKey("AGENT_MEMORY_FILE"))
		assert.Equal(t, "log", transformEnvKey("LOG"))
		assert.Equal(t, "", transformEnvKey("__"))
		assert.Equal(t, "log.level", transformEnvKey("LOG__LEVEL"))
	})
}

func TestEmailConfig_Configured(t *testing.T) {
	t.Run("Should require host, user, password and recipients", func(t *testing.T) {
		c := EmailConfig{Host: "smtp.example.com", User: "u", Password: "p"}
		assert.False(t, c.Configured())
		c.Recipients = []string{"x@example.com"}
		assert.True(t, c.Configured())
	})
}

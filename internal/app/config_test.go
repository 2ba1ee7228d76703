package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "http://localhost:8000", cfg.App.BaseURL)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/pawhaven.sqlite", cfg.Database.Path)

	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "127.0.0.1:6379", cfg.Cache.Redis.Address)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "pawhaven", cfg.Auth.JWT.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Empty(t, cfg.Auth.JWT.Secret)

	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 587, cfg.Email.SMTP.Port)
	require.True(t, cfg.Email.SMTP.UseTLS)

	require.False(t, cfg.Telegram.Enabled)
	require.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBase)

	require.True(t, cfg.Reminders.Enabled)
	require.Equal(t, "0 8 * * *", cfg.Reminders.VaccinationCron)
	require.Equal(t, "30 8 * * *", cfg.Reminders.BirthdayCron)
	require.Equal(t, 7, cfg.Reminders.VaccinationDays)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PAWHAVEN_SERVER_PORT", "9000")
	t.Setenv("PAWHAVEN_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("PAWHAVEN_REMINDERS_VACCINATION_DAYS", "14")
	t.Setenv("PAWHAVEN_CACHE_REDIS_ENABLED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 14, cfg.Reminders.VaccinationDays)
	require.True(t, cfg.Cache.Redis.Enabled)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 8081
  log_level: debug
reminders:
  enabled: false
  vaccination_cron: "15 7 * * *"
telegram:
  enabled: true
  bot_token: file-token
  bot_name: pawhaven_bot
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 8081, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.False(t, cfg.Reminders.Enabled)
	require.Equal(t, "15 7 * * *", cfg.Reminders.VaccinationCron)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, "file-token", cfg.Telegram.BotToken)
	require.Equal(t, "pawhaven_bot", cfg.Telegram.BotName)

	// Untouched sections keep their defaults.
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "30 8 * * *", cfg.Reminders.BirthdayCron)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MINIMAX_API_KEY", "MINIMAX_API_URL", "MINIMAX_MODEL",
		"PERPLEXITY_API_KEY", "PERPLEXITY_API_URL", "PERPLEXITY_MODEL",
		"TELEGRAM_BOT_TOKEN", "JWT_SECRET", "JWT_EXPIRE_MINUTES", "APP_PORT",
		"DATA_DIR", "DATABASE_PATH", "APP_USERNAME", "APP_PASSWORD",
		"GOOGLE_CREDENTIALS_FILE", "GOOGLE_DRIVE_FOLDER_ID", "GOOGLE_IMPERSONATE_USER",
		"GOOGLE_CALENDAR_ID", "GOOGLE_TIME_ZONE", "LOG_LEVEL", "LOG_FILE",
	} {
		if v, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, v) })
		}
	}
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "secretaria.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, filepath.Join("/data", "secretaria.db"), cfg.DatabasePath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL())
	assert.True(t, cfg.UsesDefaultSecret())
	assert.Equal(t, 120*time.Second, cfg.ProviderTimeout)

	primary := cfg.PrimaryProvider()
	assert.Equal(t, "https://api.minimax.io/v1", primary.APIBase)
	assert.Equal(t, "MiniMax-M2", primary.Model)
	assert.Empty(t, primary.APIKey)

	search := cfg.SearchProvider()
	assert.Equal(t, "https://api.perplexity.ai", search.APIBase)
	assert.Equal(t, "sonar", search.Model)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, `
port: 9000
data_dir: `+dir+`
provider_timeout: 45s
minimax:
  api_key: file-key
  api_url: https://example.test/v1/
perplexity:
  model: sonar-pro
auth:
  jwt_secret: from-file
log:
  level: debug
`)
	t.Setenv("MINIMAX_API_KEY", "env-key")
	t.Setenv("APP_PORT", "9100")
	t.Setenv("JWT_EXPIRE_MINUTES", "60")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "secretaria.db"), cfg.DatabasePath)
	assert.Equal(t, 45*time.Second, cfg.PrimaryProvider().Timeout)
	assert.Equal(t, "env-key", cfg.PrimaryProvider().APIKey)
	assert.Equal(t, "https://example.test/v1", cfg.PrimaryProvider().APIBase)
	assert.Equal(t, "sonar-pro", cfg.SearchProvider().Model)
	assert.Equal(t, time.Hour, cfg.TokenTTL())
	assert.False(t, cfg.UsesDefaultSecret())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_GoogleSettings(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Google.CalendarID)
	assert.Equal(t, "Europe/Madrid", cfg.Google.TimeZone)
	assert.False(t, cfg.GoogleCredentials().Configured())

	dir := t.TempDir()
	path := writeConfig(t, dir, `
google:
  credentials_file: /etc/secretaria/sa.json
  calendar_id: equipo@example.com
`)
	t.Setenv("GOOGLE_IMPERSONATE_USER", "ana@example.com")
	t.Setenv("GOOGLE_TIME_ZONE", "America/Bogota")

	cfg, err = Load(path)
	require.NoError(t, err)
	creds := cfg.GoogleCredentials()
	assert.True(t, creds.Configured())
	assert.Equal(t, "/etc/secretaria/sa.json", creds.File)
	assert.Equal(t, "ana@example.com", creds.Subject)
	assert.Equal(t, "equipo@example.com", cfg.Google.CalendarID)
	assert.Equal(t, "America/Bogota", cfg.Google.TimeZone)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(writeConfig(t, dir, "port: [not a number"))
	assert.Error(t, err)

	t.Setenv("APP_PORT", "abc")
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "APP_PORT")

	t.Setenv("APP_PORT", "70000")
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "invalid port")
}

func TestConfigWatcher_ReloadsOnChange(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "data_dir: "+dir+"\nminimax:\n  api_key: one\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	cw.debounce = 20 * time.Millisecond

	reloaded := make(chan *Config, 4)
	cw.AddCallback(func(c *Config) { reloaded <- c })
	require.NoError(t, cw.Start())
	defer cw.Stop()
	assert.Error(t, cw.Start(), "second start fails")

	// replace the file atomically with a strictly newer one
	tmp := filepath.Join(dir, "secretaria.yaml.tmp")
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.WriteFile(tmp, []byte("data_dir: "+dir+"\nminimax:\n  api_key: two\n"), 0o600))
	require.NoError(t, os.Chtimes(tmp, later, later))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case c := <-reloaded:
		assert.Equal(t, "two", c.MiniMax.APIKey)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestConfigWatcher_TriggerReload(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "data_dir: "+dir+"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	var got *Config
	cw.AddCallback(func(c *Config) { got = c })

	require.NoError(t, cw.TriggerReload())
	require.NotNil(t, got)
	assert.Equal(t, dir, got.DataDir)
}

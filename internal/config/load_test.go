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

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultAuthURL, cfg.OAuth.AuthURL)
	assert.Equal(t, DefaultMaxAuthRetries, cfg.Export.MaxAuthRetries)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://staging.codetext.io"

[export]
pre_submit_delay = "2s"
max_auth_retries = 5

[logging]
log_level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.codetext.io", cfg.API.BaseURL)
	assert.Equal(t, "2s", cfg.Export.PreSubmitDelay)
	assert.Equal(t, 5, cfg.Export.MaxAuthRetries)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultUserAgent, cfg.API.UserAgent)
	assert.Equal(t, DefaultSubmitTimeout, cfg.Export.SubmitTimeout)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `
[api]
base_urll = "typo"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeConfig(t, `[api`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://from-file.example"
`)

	t.Setenv("CODETEXT_API_URL", "https://from-env.example")
	t.Setenv("CODETEXT_OAUTH_CLIENT_ID", "env-client")
	t.Setenv("CODETEXT_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://from-env.example", cfg.API.BaseURL)
	assert.Equal(t, "env-client", cfg.OAuth.ClientID)
	assert.Equal(t, "warn", cfg.Logging.LogLevel)
}

func TestValidate_BadDuration(t *testing.T) {
	cfg := Defaults()
	cfg.Export.SubmitTimeout = "thirty seconds"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export.submit_timeout")
}

func TestValidate_NegativeRetries(t *testing.T) {
	cfg := Defaults()
	cfg.Export.MaxAuthRetries = -1

	assert.Error(t, cfg.Validate())
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.LogLevel = "loud"

	assert.Error(t, cfg.Validate())
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, Duration("2s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("garbage", time.Minute))
}

func TestOAuthConfig_Endpoint(t *testing.T) {
	ep := Defaults().OAuth.Endpoint()
	assert.Equal(t, DefaultAuthURL, ep.AuthURL)
	assert.Equal(t, DefaultTokenURL, ep.TokenURL)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:44388", c.APIURL)
	assert.Equal(t, 30*time.Second, c.HTTPTimeout)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, "warn", c.LogLevel)

	u, err := c.URL()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:44388", u.Host)
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte(
		"IDENTITY_API_URL=https://identity.example.com\n"+
			"IDENTITY_TENANT=from-file\n"+
			"IDENTITY_MAX_RETRIES=5\n"), 0o600))
	t.Setenv("IDENTITY_TENANT", "from-env")
	t.Setenv("IDENTITY_API_URL", "")
	t.Setenv("IDENTITY_MAX_RETRIES", "")
	os.Unsetenv("IDENTITY_API_URL")
	os.Unsetenv("IDENTITY_MAX_RETRIES")

	n, err := LoadEnv([]string{file, filepath.Join(dir, ".env.local")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "https://identity.example.com", c.APIURL)
	assert.Equal(t, "from-env", c.Tenant)
	assert.Equal(t, 5, c.MaxRetries)
}

func TestLoad_Invalid(t *testing.T) {
	for key, value := range map[string]string{
		"IDENTITY_MAX_RETRIES":  "-1",
		"IDENTITY_HTTP_TIMEOUT": "0s",
		"IDENTITY_API_URL":      "not a url",
		"LOG_LEVEL":             "loud",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load(noEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestConfig_ClientAndLogger(t *testing.T) {
	c := &Config{APIURL: "https://identity.example.com", HTTPTimeout: time.Second, LogLevel: "debug"}
	logger, err := c.Logger()
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(zap.DebugLevel))

	client, err := c.Client(logger)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

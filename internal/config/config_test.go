package config

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	cfg := Load()
	cfg.Vault.MasterSecret = base64.URLEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	cfg.Vault.TokenSecret = strings.Repeat("t", 32)
	cfg.Vault.SigningKeyPath = "/etc/docvault/signing.pem"
	cfg.Auth.SessionSecret = "session-secret"
	return cfg
}

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("VAULT_ACCESS_WINDOW", "48h")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, 48*time.Hour, cfg.Vault.AccessWindow)
	assert.Equal(t, 3, cfg.Vault.MaxDownloads)
	assert.Equal(t, MinKDFIterations, cfg.Vault.KDFIterations)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadBytes)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		problem string
	}{
		{name: "ok", mutate: func(c *AppConfig) {}},
		{name: "missing master secret", mutate: func(c *AppConfig) { c.Vault.MasterSecret = "" }, problem: "VAULT_MASTER_SECRET is required"},
		{name: "short master secret", mutate: func(c *AppConfig) {
			c.Vault.MasterSecret = base64.StdEncoding.EncodeToString([]byte("short"))
		}, problem: "need at least 32"},
		{name: "low iterations", mutate: func(c *AppConfig) { c.Vault.KDFIterations = 1000 }, problem: "VAULT_KDF_ITERATIONS"},
		{name: "missing signing key", mutate: func(c *AppConfig) { c.Vault.SigningKeyPath = "" }, problem: "VAULT_SIGNING_KEY_PATH"},
		{name: "short token secret", mutate: func(c *AppConfig) { c.Vault.TokenSecret = "x" }, problem: "VAULT_TOKEN_SECRET"},
		{name: "bad limiter store", mutate: func(c *AppConfig) { c.Vault.AccessLimitStore = "redis" }, problem: "VAULT_ACCESS_LIMIT_STORE"},
		{name: "bad storage backend", mutate: func(c *AppConfig) { c.Storage.Backend = "gcs" }, problem: "STORAGE_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.problem == "" {
				assert.NoError(t, err)
				return
			}
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Contains(t, cerr.Error(), tt.problem)
		})
	}
}

func TestValidateDoesNotLeakSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Vault.MasterSecret = "not-base64-!!!-super-secret-value"
	err := cfg.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret-value")
}

func TestDecodeSecret(t *testing.T) {
	raw := []byte(strings.Repeat("a", 32))

	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		b, err := DecodeSecret(enc.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, b)
	}

	_, err := DecodeSecret("%%%")
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	t.Setenv(key, "value")

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	t.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	t.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	t.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	t.Setenv(key, "")
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	t.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	t.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	t.Setenv(key, "")
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvDurationAndList(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_DURATION", "soon")
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_LIST", " a, ,b ")
	assert.Equal(t, []string{"a", "b"}, getEnvList("TEST_LIST", nil))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, getEnvList("TEST_LIST", []string{"x"}))
}

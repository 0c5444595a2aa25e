package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STOREFRONT_GATEWAY_API_KEY", "key")
	t.Setenv("STOREFRONT_GATEWAY_SECRET_KEY", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "sqlite", cfg.CatalogDriver)
	assert.Equal(t, "/checkout/success", cfg.SuccessPath)
	assert.Equal(t, sandboxBaseURL, cfg.Gateway.BaseURL)
	assert.Equal(t, cfg.Gateway.BaseURL, cfg.GatewayQuick.BaseURL)
	assert.False(t, cfg.HasQuickWallet())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "STOREFRONT_GATEWAY_API_KEY=file-key\n" +
		"STOREFRONT_GATEWAY_SECRET_KEY=file-secret\n" +
		"STOREFRONT_GATEWAY_QUICK_API_KEY=quick-key\n" +
		"STOREFRONT_GATEWAY_QUICK_SECRET_KEY=quick-secret\n" +
		"STOREFRONT_KAFKA_BROKERS=k1:9092,k2:9092\n" +
		"STOREFRONT_GATEWAY_TIMEOUT=3s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{
			"STOREFRONT_GATEWAY_API_KEY", "STOREFRONT_GATEWAY_SECRET_KEY",
			"STOREFRONT_GATEWAY_QUICK_API_KEY", "STOREFRONT_GATEWAY_QUICK_SECRET_KEY",
			"STOREFRONT_KAFKA_BROKERS", "STOREFRONT_GATEWAY_TIMEOUT",
		} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Gateway.APIKey)
	assert.True(t, cfg.HasQuickWallet())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := &Config{GatewayTimeout: time.Second}
	assert.ErrorContains(t, cfg.Validate(), "api key and secret key are required")
}

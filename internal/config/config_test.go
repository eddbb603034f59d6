package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromDefaults(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadFromDefaults(t)

	assert.Equal(t, 8086, cfg.Service.Port)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, "ae6_kinetic_01", cfg.Tenant.DefaultID)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Empty(t, cfg.Hub.URL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DEFAULT_TENANT_ID", "custom_tenant")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AGENTS_HUB_URL", "https://hub.example.com")
	t.Setenv("DATABASE_HOST", "db.internal")

	cfg := loadFromDefaults(t)

	assert.Equal(t, "custom_tenant", cfg.Tenant.DefaultID)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "https://hub.example.com", cfg.Hub.URL)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		Database: "estate",
		Username: "svc",
		Password: "secret",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=estate")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Service:   ServiceConfig{Port: 8086, MetricsPort: 9096},
			Tenant:    TenantConfig{DefaultID: "t1"},
			Embedding: EmbeddingConfig{Dimensions: 1536},
			Search:    SearchConfig{DefaultLimit: 10, ReindexWorkers: 1},
		}
	}

	cfg := base()
	cfg.Service.Port = 0
	assert.Error(t, validate(cfg))

	cfg = base()
	cfg.Tenant.DefaultID = ""
	assert.Error(t, validate(cfg))

	cfg = base()
	cfg.Embedding.Dimensions = 0
	assert.Error(t, validate(cfg))

	cfg = base()
	cfg.Search.ReindexWorkers = 0
	assert.Error(t, validate(cfg))

	assert.NoError(t, validate(base()))
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultValues(t *testing.T) {
	for _, k := range []string{"POSTGRES_HOST", "POSTGRES_PORT", "TENANTS", "MAX_CONCURRENCY", "LOG_LEVEL", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "localhost", cfg.PostgresHost)
	assert.Equal(t, "5432", cfg.PostgresPort)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Tenants)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("TENANTS", " acme , ,globex")
	t.Setenv("MAX_CONCURRENCY", "5")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.PostgresHost)
	assert.Equal(t, []string{"acme", "globex"}, cfg.Tenants)
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.Equal(t, 3, cfg.MaxRetries, "invalid ints fall back to the default")
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "h", PostgresPort: "1", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "d", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", cfg.DSN())
}

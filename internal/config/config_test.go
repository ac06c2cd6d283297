package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Database.MinConns)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, "dementia_", cfg.Database.SchemaPrefix)
	assert.Equal(t, "dementia_system", cfg.Database.SystemSchema)
	assert.Equal(t, 1024, cfg.OpenAI.EmbeddingDimensions)
	assert.Equal(t, 1020, cfg.OpenAI.EmbeddingMaxChars)
	assert.Equal(t, 2*time.Hour, cfg.Session.HandoverCutoff())
	assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Database.URL = "postgres://localhost:5432/dementia"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("missing database url", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Error(t, cfg.Validate())
	})

	t.Run("inverted pool bounds", func(t *testing.T) {
		cfg := valid()
		cfg.Database.MinConns = 20
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero retry budget", func(t *testing.T) {
		cfg := valid()
		cfg.Search.LockRetryBudget = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("default limit above max", func(t *testing.T) {
		cfg := valid()
		cfg.Search.DefaultLimit = 1000
		assert.Error(t, cfg.Validate())
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEMENTIA_DATABASE_URL", "postgres://db:5432/x")
	t.Setenv("DEMENTIA_DB_MAX_CONNS", "5")
	t.Setenv("DEMENTIA_HANDOVER_CUTOFF_MINUTES", "90")

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	assert.Equal(t, "postgres://db:5432/x", cfg.Database.URL)
	assert.Equal(t, 5, cfg.Database.MaxConns)
	assert.Equal(t, 90*time.Minute, cfg.Session.HandoverCutoff())
}

func TestEmbeddingsEnabled(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.EmbeddingsEnabled())
	cfg.OpenAI.APIKey = "sk-test"
	assert.True(t, cfg.EmbeddingsEnabled())
}

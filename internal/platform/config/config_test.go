package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "k")
	t.Setenv("ANONYMIZER_SECRET", "s")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Verification.CodeTTL)
	assert.Equal(t, 5, cfg.Verification.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, BackendMemory, cfg.Backends.Ledger)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("OTC_TTL", "90s")
	t.Setenv("OTC_MAX_ATTEMPTS", "3")
	t.Setenv("AUDIT_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LEDGER_BACKEND", "postgres")

	cfg := FromEnv()

	assert.Equal(t, 90*time.Second, cfg.Verification.CodeTTL)
	assert.Equal(t, 3, cfg.Verification.MaxAttempts)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.KafkaBrokers)
	assert.Equal(t, BackendPostgres, cfg.Backends.Ledger)
}

func TestValidateMissingSecrets(t *testing.T) {
	cfg := Config{
		Backends:     Backends{Store: BackendRedis, Ledger: BackendChain},
		Verification: Verification{MaxAttempts: 5},
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSigningKey)
	assert.ErrorIs(t, err, ErrMissingAnonymizerKey)
	assert.ErrorIs(t, err, ErrMissingRedisURL)
	assert.ErrorIs(t, err, ErrMissingChainSigningKey)
	assert.NotErrorIs(t, err, ErrMissingPostgresDSN)
}

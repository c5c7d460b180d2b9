package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "LEDGER_BACKEND", "WORKER_COUNT", "IDEMPOTENCY_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, LedgerMySQL, cfg.LedgerBackend)
	assert.Equal(t, 10, cfg.WorkerCount)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "redis")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("REQUEST_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, LedgerRedis, cfg.LedgerBackend)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 750*time.Millisecond, cfg.RequestTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown backend", "LEDGER_BACKEND", "etcd"},
		{"bad int", "QUEUE_SIZE", "many"},
		{"bad duration", "IDEMPOTENCY_TTL", "1 day"},
		{"no workers", "WORKER_COUNT", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

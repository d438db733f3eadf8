package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fern-api", cfg.AppName)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, LockBackendLocal, cfg.LockBackend, "memory store cannot hold advisory locks")
	assert.Equal(t, 3, cfg.ReconcileMaxRetries)
	assert.Equal(t, 25*time.Millisecond, cfg.ReconcileRetryBackoff)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://fern:secret@db:5432/fern")
	t.Setenv("APP_ENV", "development")
	t.Setenv("PORT", "8080")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("RECONCILE_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, LockBackendRedis, cfg.LockBackend)
	assert.Equal(t, 3*time.Second, cfg.ReconcileTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "postgres://fern:secret@db:5432/fern", cfg.DSN())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "postgres with url", cfg: Config{StoreDriver: StoreDriverPostgres, DatabaseURL: "postgres://x", LockBackend: LockBackendPostgres}},
		{name: "postgres with host", cfg: Config{StoreDriver: StoreDriverPostgres, DatabaseHost: "db", LockBackend: LockBackendRedis}},
		{name: "postgres without a database", cfg: Config{StoreDriver: StoreDriverPostgres, LockBackend: LockBackendPostgres}, wantErr: "DATABASE_URL"},
		{name: "unknown store", cfg: Config{StoreDriver: "sqlite", LockBackend: LockBackendLocal}, wantErr: "STORE_DRIVER"},
		{name: "unknown lock backend", cfg: Config{StoreDriver: StoreDriverMemory, LockBackend: "zookeeper"}, wantErr: "LOCK_BACKEND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSN_FromParts(t *testing.T) {
	cfg := Config{
		DatabaseHost:           "db",
		DatabasePort:           "5433",
		DatabaseUserName:       "fern",
		DatabasePassword:       "p@ss",
		DatabaseName:           "contacts",
		DatabaseSSLMode:        "require",
		DatabaseConnectTimeout: 5 * time.Second,
	}

	assert.Equal(t, "postgres://fern:p%40ss@db:5433/contacts?connect_timeout=5&sslmode=require", cfg.DSN())
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("AUTH_CODE_TTL", "")

	cfg := LoadConfig()

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ":3000", cfg.GetServerAddress())
	assert.Equal(t, 5*time.Minute, cfg.Auth.CodeTTL)
	assert.Equal(t, "memory", cfg.Storage.CodeStore)
	assert.Equal(t, "memory", cfg.Storage.UserStore)
	assert.Equal(t, "/app/certs/scylla-ca.pem", cfg.Scylla.TLSCAFile)
	assert.True(t, cfg.ExposeCodes())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("AUTH_CODE_TTL", "2m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TLS_ENABLED", "true")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SCYLLA_TLS_CA_FILE", "/etc/scylla/ca.pem")

	cfg := LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.ExposeCodes())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Auth.CodeTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Server.EnableTLS)
	assert.Equal(t, "/etc/scylla/ca.pem", cfg.Scylla.TLSCAFile)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("AUTH_CODE_TTL", "five minutes")

	cfg := LoadConfig()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Auth.CodeTTL)
}

func TestValidate_ProductionRules(t *testing.T) {
	cfg := &Config{
		Environment: EnvProduction,
		Auth:        AuthConfig{CodeTTL: time.Minute, TokenMode: "jwt", JWTSecret: "short"},
		Storage:     StorageConfig{CodeStore: "redis", UserStore: "scylla"},
		SMS:         SMSConfig{Sender: "kafka"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.Auth.TokenMode = "opaque"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opaque")
}

func TestValidate_UnknownBackends(t *testing.T) {
	cfg := &Config{
		Environment: EnvDevelopment,
		Auth:        AuthConfig{CodeTTL: time.Minute, TokenMode: "jwt"},
		Storage:     StorageConfig{CodeStore: "etcd", UserStore: "memory"},
		SMS:         SMSConfig{Sender: "carrier-pigeon"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CODE_STORE")
	assert.Contains(t, err.Error(), "SMS_SENDER")
}

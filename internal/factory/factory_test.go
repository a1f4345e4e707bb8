package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"life-auth/internal/config"
	"life-auth/internal/repository/memory"
	"life-auth/internal/sms"
	"life-auth/internal/token"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment: config.EnvDevelopment,
		Auth: config.AuthConfig{
			CodeTTL:          5 * time.Minute,
			ExpiredRetention: time.Hour,
			TokenMode:        token.ModeJWT,
			TokenTTL:         time.Hour,
		},
		Storage: config.StorageConfig{CodeStore: "memory", UserStore: "memory"},
		SMS:     config.SMSConfig{Sender: "log"},
	}
}

func TestNew_MemoryBackends(t *testing.T) {
	f, err := New(memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.IsType(t, &memory.CodeStore{}, f.CodeStore())
	assert.IsType(t, &memory.UserDirectory{}, f.UserDirectory())
	assert.IsType(t, &sms.LogSender{}, f.smsSender)
	assert.IsType(t, &token.JWTIssuer{}, f.tokenIssuer)
	assert.Nil(t, f.TLSManager())
	assert.True(t, f.IsHealthy(context.Background()))
}

func TestNew_ServiceRoundTrip(t *testing.T) {
	f, err := New(memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	svc := f.ServiceFactory().VerificationService()
	assert.Same(t, svc, f.ServiceFactory().VerificationService())

	ctx := context.Background()
	res, err := svc.RequestCode(ctx, "13800138000")
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)

	out, err := svc.Verify(ctx, "13800138000", res.Code)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Token)
}

func TestNew_OpaqueMode(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.TokenMode = token.ModeOpaque

	f, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	assert.IsType(t, &token.OpaqueIssuer{}, f.tokenIssuer)
}

func TestClose_Idempotent(t *testing.T) {
	f, err := New(memoryConfig())
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	f.WaitForClose()
}

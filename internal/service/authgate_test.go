package service

import (
	"context"
	"testing"
	"time"

	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthGate_AuthenticateRequest(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})

	key, rec, err := env.store.Create(context.Background(), "acme", 30)
	require.NoError(t, err)

	got, err := env.gate.AuthenticateRequest(key)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestAuthGate_MissingKey(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})

	_, err := env.gate.AuthenticateRequest("")
	assert.ErrorIs(t, err, ierr.ErrMissingCredential)
}

func TestAuthGate_UnknownKey(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})

	_, err := env.gate.AuthenticateRequest("not-a-real-key")
	assert.ErrorIs(t, err, ierr.ErrInvalidCredential)
	assert.Equal(t, 0, env.limiter.Len(), "unknown keys never get a bucket")
}

func TestAuthGate_ExpiredKeyDoesNotConsumeTokens(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})

	key, _, err := env.store.Create(context.Background(), "acme", 1)
	require.NoError(t, err)

	// Still valid at exactly expires_at.
	env.clock.Advance(24 * time.Hour)
	_, err = env.gate.AuthenticateRequest(key)
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	before, ok := env.limiter.Peek(key)
	require.True(t, ok)

	_, err = env.gate.AuthenticateRequest(key)
	assert.ErrorIs(t, err, ierr.ErrExpiredCredential)

	after, ok := env.limiter.Peek(key)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestAuthGate_ExpiredKeyNeverCreatesBucket(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})

	key, _, err := env.store.Create(context.Background(), "acme", 1)
	require.NoError(t, err)

	env.clock.Advance(48 * time.Hour)
	_, err = env.gate.AuthenticateRequest(key)
	assert.ErrorIs(t, err, ierr.ErrExpiredCredential)
	assert.Equal(t, 0, env.limiter.Len())
}

func TestAuthGate_RateLimited(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 2, RefillPerSec: 1})

	key, _, err := env.store.Create(context.Background(), "acme", 30)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := env.gate.AuthenticateRequest(key)
		require.NoError(t, err)
	}

	_, err = env.gate.AuthenticateRequest(key)
	assert.ErrorIs(t, err, ierr.ErrRateLimited)

	env.clock.Advance(time.Second)
	_, err = env.gate.AuthenticateRequest(key)
	assert.NoError(t, err)
}

func TestAuthGate_RevokedKeyIsInvalid(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})
	ctx := context.Background()

	key, _, err := env.store.Create(ctx, "acme", 30)
	require.NoError(t, err)
	_, err = env.gate.AuthenticateRequest(key)
	require.NoError(t, err)

	require.NoError(t, env.store.Revoke(ctx, key))

	_, err = env.gate.AuthenticateRequest(key)
	assert.ErrorIs(t, err, ierr.ErrInvalidCredential)
	assert.Equal(t, 0, env.limiter.Len())
}

func TestAuthGate_AuthenticateAdmin(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})

	assert.NoError(t, env.gate.AuthenticateAdmin(testAdminKey))
	assert.ErrorIs(t, env.gate.AuthenticateAdmin(""), ierr.ErrInvalidAdminKey)
	assert.ErrorIs(t, env.gate.AuthenticateAdmin(testAdminKey+"x"), ierr.ErrInvalidAdminKey)
	assert.ErrorIs(t, env.gate.AuthenticateAdmin("admin-secreT"), ierr.ErrInvalidAdminKey)

	assert.Equal(t, 0, env.limiter.Len(), "admin checks do not touch the limiter")
}

func TestAuthGate_AuthenticateAdminWithHash(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})

	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-admin"), bcrypt.MinCost)
	require.NoError(t, err)

	gate, err := NewAuthGate(env.store, env.limiter, config.AuthConfig{
		AdminKey:     "ignored-when-hash-set",
		AdminKeyHash: string(hash),
	}, env.clock.Now, nil, zap.NewNop())
	require.NoError(t, err)

	assert.NoError(t, gate.AuthenticateAdmin("hashed-admin"))
	assert.ErrorIs(t, gate.AuthenticateAdmin("ignored-when-hash-set"), ierr.ErrInvalidAdminKey)
	assert.ErrorIs(t, gate.AuthenticateAdmin(""), ierr.ErrInvalidAdminKey)
}

func TestNewAuthGate_RequiresAdminCredential(t *testing.T) {
	env := newTestEnv(t, RateDefaults{Capacity: 60, RefillPerSec: 1})

	_, err := NewAuthGate(env.store, env.limiter, config.AuthConfig{}, env.clock.Now, nil, zap.NewNop())
	assert.ErrorIs(t, err, ierr.ErrMisconfiguredSecret)
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/storage/memstorage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAdminKey = "admin-secret"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	clock    *fakeClock
	snapshot *memstorage.SnapshotStore
	limiter  *RateLimiter
	store    *KeyStore
	gate     *AuthGate
}

func newTestEnv(t *testing.T, defaults RateDefaults) *testEnv {
	t.Helper()

	clock := newFakeClock()
	snapshot := memstorage.NewSnapshotStore()
	logger := zap.NewNop()

	limiter := NewRateLimiter(clock.Now, nil, logger)
	store, err := NewKeyStore(context.Background(), snapshot, defaults, limiter, clock.Now, nil, logger)
	require.NoError(t, err)

	gate, err := NewAuthGate(store, limiter, config.AuthConfig{AdminKey: testAdminKey}, clock.Now, nil, logger)
	require.NoError(t, err)

	return &testEnv{
		clock:    clock,
		snapshot: snapshot,
		limiter:  limiter,
		store:    store,
		gate:     gate,
	}
}

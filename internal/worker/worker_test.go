package worker

import (
	"context"
	"testing"

	"github.com/makkenzo/keygate/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type noopPurger struct{}

func (noopPurger) PurgeExpired(context.Context) (int, error) { return 0, nil }

func TestRunWorkers_Disabled(t *testing.T) {
	cfg := &config.Config{Worker: config.WorkerConfig{Enabled: false}}

	assert.NoError(t, RunWorkers(context.Background(), cfg, noopPurger{}, zap.NewNop()))
}

func TestAsynqLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewAsynqLoggerAdapter(zap.New(core))

	adapter.Info("scheduler ", "started")
	adapter.Fatal("redis unreachable")

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "scheduler started", entries[0].Message)
		assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	}
}

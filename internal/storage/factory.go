package storage

import (
	"context"
	"fmt"

	"github.com/makkenzo/keygate/internal/config"
	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/ierr"
	"github.com/makkenzo/keygate/internal/storage/file"
	"github.com/makkenzo/keygate/internal/storage/memstorage"
	"github.com/makkenzo/keygate/internal/storage/postgres"
	"github.com/makkenzo/keygate/internal/storage/redis"
	"go.uber.org/zap"
)

// Backend is a snapshot store that can also report its health.
type Backend interface {
	apikey.SnapshotStore
	apikey.Pinger
}

// NewSnapshotBackend opens the snapshot backend selected by
// cfg.Storage.Driver. The returned close func releases its connections.
func NewSnapshotBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, func(), error) {
	log := logger.Named("Storage")
	noop := func() {}

	switch cfg.Storage.Driver {
	case config.StorageDriverFile, "":
		log.Info("Using file snapshot storage", zap.String("path", cfg.Storage.Path))
		return file.NewSnapshotStore(cfg.Storage.Path, logger), noop, nil

	case config.StorageDriverMemory:
		log.Warn("Using in-memory snapshot storage, keys will not survive a restart")
		return memstorage.NewSnapshotStore(), noop, nil

	case config.StorageDriverPostgres:
		pool, err := postgres.NewPgxPool(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %v", ierr.ErrStorageFailure, err)
		}
		repo := postgres.NewSnapshotRepository(pool, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("%w: %v", ierr.ErrStorageFailure, err)
		}
		log.Info("Using postgres snapshot storage")
		return repo, pool.Close, nil

	case config.StorageDriverRedis:
		client, err := redis.NewRedisClient(ctx, &cfg.Redis, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: %v", ierr.ErrStorageFailure, err)
		}
		log.Info("Using redis snapshot storage", zap.String("key", cfg.Storage.RedisKey))
		return redis.NewSnapshotStore(client, cfg.Storage.RedisKey, logger), func() { _ = client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("%w: unknown storage driver %q", ierr.ErrValidation, cfg.Storage.Driver)
	}
}

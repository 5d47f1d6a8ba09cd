package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SnapshotStore keeps the snapshot document under a single Redis key.
type SnapshotStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

func NewSnapshotStore(client *redis.Client, key string, logger *zap.Logger) *SnapshotStore {
	if key == "" {
		key = apikey.DefaultSnapshotKey
	}
	return &SnapshotStore{
		client: client,
		key:    key,
		logger: logger.Named("RedisSnapshotStore"),
	}
}

var _ apikey.SnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) Load(ctx context.Context) (map[string]apikey.CredentialRecord, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.logger.Info("No api key snapshot in redis, starting empty", zap.String("key", s.key))
			return make(map[string]apikey.CredentialRecord), nil
		}
		return nil, fmt.Errorf("redis error loading snapshot: %w", err)
	}

	return apikey.DecodeSnapshot(data)
}

func (s *SnapshotStore) Save(ctx context.Context, records map[string]apikey.CredentialRecord) error {
	data, err := apikey.EncodeSnapshot(records)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		s.logger.Error("Failed to save api key snapshot", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("redis error saving snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

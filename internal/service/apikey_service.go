package service

import (
	"context"
	"fmt"

	"github.com/makkenzo/keygate/internal/handler/dto"
	"github.com/makkenzo/keygate/internal/util"
	"go.uber.org/zap"
)

type APIKeyService struct {
	store  *KeyStore
	logger *zap.Logger
}

func NewAPIKeyService(store *KeyStore, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{
		store:  store,
		logger: logger.Named("APIKeyService"),
	}
}

func (s *APIKeyService) CreateAPIKey(ctx context.Context, clientName string, daysValid int) (*dto.CreateAPIKeyResponse, error) {
	s.logger.Info("Generating new API key", zap.String("client_name", clientName), zap.Int("days_valid", daysValid))

	key, record, err := s.store.Create(ctx, clientName, daysValid)
	if err != nil {
		s.logger.Error("Failed to create api key", zap.Error(err))
		return nil, fmt.Errorf("creating api key: %w", err)
	}

	return &dto.CreateAPIKeyResponse{
		Message: "API key created",
		APIKey:  key,
		Record:  record,
	}, nil
}

func (s *APIKeyService) ListAPIKeys(ctx context.Context) (*dto.ListAPIKeysResponse, error) {
	s.logger.Debug("Listing API keys")
	keys := s.store.List()

	s.logger.Info("API keys listed successfully", zap.Int("count", len(keys)))
	return &dto.ListAPIKeysResponse{
		Message: "All API keys",
		Keys:    keys,
	}, nil
}

func (s *APIKeyService) RevokeAPIKey(ctx context.Context, key string) (*dto.RevokeAPIKeyResponse, error) {
	fp := util.KeyFingerprint(key)
	s.logger.Info("Attempting to revoke API key", zap.String("key", fp))

	if err := s.store.Revoke(ctx, key); err != nil {
		s.logger.Error("Failed to revoke api key", zap.String("key", fp), zap.Error(err))
		return nil, fmt.Errorf("revoking api key %s: %w", fp, err)
	}

	s.logger.Info("API key revoked successfully", zap.String("key", fp))
	return &dto.RevokeAPIKeyResponse{
		Message: "API key revoked",
		Key:     dto.RevokedKey{Revoked: key},
	}, nil
}

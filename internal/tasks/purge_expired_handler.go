package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ExpiredKeyPurger is implemented by service.KeyStore.
type ExpiredKeyPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type PurgeExpiredHandler struct {
	purger ExpiredKeyPurger
	logger *zap.Logger
}

func NewPurgeExpiredHandler(purger ExpiredKeyPurger, logger *zap.Logger) *PurgeExpiredHandler {
	return &PurgeExpiredHandler{
		purger: purger,
		logger: logger.Named("PurgeExpiredHandler"),
	}
}

func (h *PurgeExpiredHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeAPIKeyPurgeExpired {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p PurgeExpiredPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal payload for api key purge task", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("Processing expired api key purge task...")

	purged, err := h.purger.PurgeExpired(ctx)
	if err != nil {
		h.logger.Error("Failed to purge expired api keys", zap.Error(err))
		return fmt.Errorf("purging expired api keys: %w", err)
	}

	h.logger.Info("Expired api key purge task finished", zap.Int("purged", purged))
	return nil
}

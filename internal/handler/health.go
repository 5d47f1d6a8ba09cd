package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/service"
	"go.uber.org/zap"
)

type HealthHandler struct {
	storage apikey.Pinger
	store   *service.KeyStore
	limiter *service.RateLimiter
	logger  *zap.Logger
}

func NewHealthHandler(storage apikey.Pinger, store *service.KeyStore, limiter *service.RateLimiter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		storage: storage,
		store:   store,
		limiter: limiter,
		logger:  logger.Named("HealthHandler"),
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	storageStatus := "ok"
	if err := h.storage.Ping(c.Request.Context()); err != nil {
		storageStatus = "error"
		h.logger.Error("Health check: snapshot storage ping failed", zap.Error(err))
	}

	body := gin.H{
		"status": "ok",
		"dependencies": gin.H{
			"storage": storageStatus,
		},
		"keys":    h.store.Len(),
		"buckets": h.limiter.Len(),
	}

	if storageStatus == "error" {
		body["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}

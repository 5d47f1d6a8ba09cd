package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/handler/dto"
	"github.com/makkenzo/keygate/internal/handler/middleware"
	"github.com/makkenzo/keygate/internal/ierr"
	"github.com/makkenzo/keygate/internal/service"
	"github.com/makkenzo/keygate/internal/util"
	"go.uber.org/zap"
)

type APIKeyHandler struct {
	service *service.APIKeyService
	logger  *zap.Logger
}

func NewAPIKeyHandler(service *service.APIKeyService, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		service: service,
		logger:  logger.Named("APIKeyHandler"),
	}
}

// Create accepts client_name and days_valid either as a JSON body or as
// query/form values.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Failed to bind create api key request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	daysValid := apikey.DefaultDaysValid
	if req.DaysValid != nil {
		daysValid = *req.DaysValid
	}

	resp, err := h.service.CreateAPIKey(c.Request.Context(), req.ClientName, daysValid)
	if err != nil {
		h.logger.Error("Service failed to create api key", zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Info("API key created via handler", zap.String("key", util.KeyFingerprint(resp.APIKey)))
	c.JSON(http.StatusCreated, resp)
}

func (h *APIKeyHandler) List(c *gin.Context) {
	resp, err := h.service.ListAPIKeys(c.Request.Context())
	if err != nil {
		h.logger.Error("Service failed to list api keys", zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Debug("API keys listed successfully via handler", zap.Int("count", len(resp.Keys)))
	c.JSON(http.StatusOK, resp)
}

func (h *APIKeyHandler) Revoke(c *gin.Context) {
	var req dto.RevokeAPIKeyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Failed to bind revoke api key request", zap.Error(err))
		_ = c.Error(bindError(err))
		return
	}

	resp, err := h.service.RevokeAPIKey(c.Request.Context(), req.Key)
	if err != nil {
		h.logger.Error("Service failed to revoke api key", zap.String("key", util.KeyFingerprint(req.Key)), zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// WhoAmI echoes the record of the key that authenticated the request.
func (h *APIKeyHandler) WhoAmI(c *gin.Context) {
	record, ok := middleware.GetCredential(c)
	if !ok {
		_ = c.Error(ierr.ErrMissingCredential)
		return
	}
	c.JSON(http.StatusOK, dto.NewWhoAmIResponse(record))
}

// bindError keeps validator errors intact for per-field rendering and wraps
// anything else (malformed JSON, bad integers) as a validation failure.
func bindError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return err
	}
	return fmt.Errorf("%w: %v", ierr.ErrValidation, err)
}

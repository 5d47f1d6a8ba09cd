package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keygate/internal/handler/dto"
	"github.com/makkenzo/keygate/internal/handler/middleware"
	"github.com/makkenzo/keygate/internal/ierr"
	"github.com/makkenzo/keygate/internal/service"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Gate           *service.AuthGate
	APIKeys        *APIKeyHandler
	Webhooks       *WebhookHandler
	Health         *HealthHandler
	Metrics        http.Handler
	AllowedOrigins []string
}

func NewRouter(deps RouterDeps, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		logger.Error(logMsg, zap.Stack("stack"))

		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.APIErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: ierr.ErrInternalServer.Error(),
		})
	}))

	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: deps.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders: []string{
				"Origin",
				"Content-Type",
				"Accept",
				"X-API-Key",
				"X-Admin-API-Key",
				middleware.RequestIDHeader,
			},
			ExposeHeaders:    []string{"Content-Length", "Retry-After", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(middleware.ErrorHandlerMiddleware(logger))

	router.GET("/healthz", deps.Health.Check)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	adminRoutes := router.Group("/admin")
	adminRoutes.Use(middleware.AdminAuthMiddleware(deps.Gate, logger))
	{
		adminRoutes.POST("/create-key", deps.APIKeys.Create)
		adminRoutes.GET("/list-keys", deps.APIKeys.List)
		adminRoutes.DELETE("/revoke-key", deps.APIKeys.Revoke)
	}

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.APIKeyAuthMiddleware(deps.Gate, logger))
	{
		apiV1.GET("/whoami", deps.APIKeys.WhoAmI)
	}

	webhookRoutes := router.Group("/webhooks")
	{
		webhookRoutes.POST("/generic", deps.Webhooks.Generic)
		webhookRoutes.POST("/twilio", deps.Webhooks.Twilio)
	}

	return router
}

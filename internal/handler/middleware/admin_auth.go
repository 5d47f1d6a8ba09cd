package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keygate/internal/service"
	"go.uber.org/zap"
)

const adminKeyHeader = "X-Admin-API-Key"

func AdminAuthMiddleware(gate *service.AuthGate, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AdminAuthMiddleware")
	return func(c *gin.Context) {
		if err := gate.AuthenticateAdmin(c.GetHeader(adminKeyHeader)); err != nil {
			log.Warn("Admin request rejected", zap.String("path", c.FullPath()), zap.String("client_ip", c.ClientIP()))
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}

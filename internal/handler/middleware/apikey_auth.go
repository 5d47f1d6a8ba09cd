package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/makkenzo/keygate/internal/domain/apikey"
	"github.com/makkenzo/keygate/internal/service"
	"go.uber.org/zap"
)

const (
	apiKeyHeader         = "X-API-Key"
	credentialContextKey = "apiKeyCredential"
)

// APIKeyAuthMiddleware admits requests carrying a live, unexpired key with
// tokens left in its bucket. The matched record is stored on the context.
func APIKeyAuthMiddleware(gate *service.AuthGate, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("APIKeyAuthMiddleware")
	return func(c *gin.Context) {
		record, err := gate.AuthenticateRequest(c.GetHeader(apiKeyHeader))
		if err != nil {
			log.Debug("API key rejected", zap.String("path", c.FullPath()), zap.Error(err))
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(credentialContextKey, record)
		c.Next()
	}
}

func GetCredential(c *gin.Context) (apikey.CredentialRecord, bool) {
	value, exists := c.Get(credentialContextKey)
	if !exists {
		return apikey.CredentialRecord{}, false
	}
	record, ok := value.(apikey.CredentialRecord)
	return record, ok
}

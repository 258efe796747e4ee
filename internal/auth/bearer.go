package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/logging"
)

// BearerTokenMiddleware protects the webhook route with the shared secret
// configured in ShowMojo. An empty token disables the check so local setups
// work without one; that is logged once at startup.
func BearerTokenMiddleware(token string) gin.HandlerFunc {
	if token == "" {
		logging.Warn().Msg("SHOWMOJO_BEARER_TOKEN not set, webhook authentication is disabled")
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(token)

	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			logging.Ctx(c.Request.Context()).Warn().Msg("webhook request without Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}

		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header format"})
			return
		}

		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			logging.Ctx(c.Request.Context()).Warn().Msg("webhook request with invalid bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Next()
	}
}

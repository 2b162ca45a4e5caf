// README: Request identity. Verifies a Firebase bearer token when a
// verifier is configured; otherwise trusts the gateway-injected headers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"savari/internal/infra"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			// dev mode: identity travels in plain headers
			c.Set(CtxUserID, c.GetHeader("X-User-ID"))
			c.Set(CtxRole, c.GetHeader("X-User-Role"))
			c.Next()
			return
		}
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxUserID, token.UID)
		if role, ok := token.Claims["role"].(string); ok {
			c.Set(CtxRole, role)
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's id, empty when anonymous.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

func Role(c *gin.Context) string {
	return c.GetString(CtxRole)
}

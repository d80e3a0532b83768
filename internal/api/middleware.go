package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader carries the caller identity set by the upstream gateway
	UserIDHeader = "X-User-ID"
	// IdempotencyKeyHeader makes practice result submissions safe to retry
	IdempotencyKeyHeader = "Idempotency-Key"

	userIDKey = "userID"
)

// RequireUser rejects requests without a caller identity
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing "+UserIDHeader+" header")
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

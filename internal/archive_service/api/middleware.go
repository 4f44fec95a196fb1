package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// IdentityMiddleware requires the X-User-ID header set by the authenticating
// gateway in front of this service. Requests without an identity never reach
// a handler.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID header"})
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

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"skillswap-backend/pkg/jwt"
)

// Auth creates a Gin middleware that validates session tokens on the HTTP
// API surface. The WebSocket gateway does its own validation because the
// token rides the query string there.
// If valid, it sets user_id, user_name, and role in the Gin context.
func Auth(sessions *jwt.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := sessions.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.Name)
		c.Set("role", claims.Role)
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hadia/wholesale-store/internal/auth"
	"github.com/hadia/wholesale-store/internal/models"
)

const (
	userIDKey   = "user_id"
	userRoleKey = "user_role"
)

// Auth validates the bearer token and loads the caller's identity into
// the gin context. Requests without a valid token get a 401.
func Auth(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		userID, role, err := tokens.Verify(tokenParts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Set(userRoleKey, role)
		c.Next()
	}
}

// RequireAdmin gates admin-only routes. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(userRoleKey) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

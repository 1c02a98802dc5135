package middleware

import (
	"strings"

	"commentengine/internal/model"
	"commentengine/internal/util"

	"github.com/gin-gonic/gin"
)

// Auth validates the bearer token and stores the actor identity in the
// request context under userID, username and role.
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			util.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			util.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := util.ValidateToken(parts[1], jwtSecret)
		if err != nil {
			util.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireModerator gates moderator-only routes on the role claim from the
// validated token.
func RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			util.Unauthorized(c, "User not authenticated")
			c.Abort()
			return
		}
		r, _ := role.(string)
		if r != model.RoleModerator && r != model.RoleAdmin {
			// Same wording as not-found so the route does not leak.
			util.NotFound(c, "resource not found")
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware requires an authenticated admin account carrying an
// adm_ token. Runs after AuthMiddleware.
func AdminAuthMiddleware(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"},
			})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		hasAdminToken := strings.Contains(authHeader, "Bearer adm_")

		if !user.IsAdmin() || !hasAdminToken {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "Admin access required"},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CronAuthMiddleware guards the cron trigger endpoints with a shared secret
// from either the X-Cron-Secret header or a ?secret= query parameter
func CronAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			// No secret configured; cron endpoints are disabled
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   gin.H{"code": "SERVICE_UNAVAILABLE", "message": "Cron endpoints not configured"},
			})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-Cron-Secret")
		if provided == "" {
			provided = c.Query("secret")
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Invalid cron secret"},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

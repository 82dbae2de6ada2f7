package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDKey = "request_id"

	HeaderXRequestID     = "X-Request-ID"
	HeaderXCorrelationID = "X-Correlation-ID"
	HeaderCFRay          = "CF-Ray"
)

// RequestID generates or propagates a request ID for log correlation
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := extractRequestID(c)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(HeaderXRequestID, requestID)
		c.Next()
	}
}

// extractRequestID checks incoming headers so IDs pass through from
// proxies and upstream services
func extractRequestID(c *gin.Context) string {
	for _, header := range []string{HeaderXRequestID, HeaderXCorrelationID, HeaderCFRay} {
		if id := c.GetHeader(header); id != "" {
			return id
		}
	}
	return ""
}

// GetRequestID returns the request ID from the context
func GetRequestID(c *gin.Context) string {
	if id, ok := c.Get(RequestIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

package middleware

import (
	"regexp"
	"strconv"
	"time"

	"github.com/tunecast/tunecast/src/server/metrics"

	"github.com/gin-gonic/gin"
)

var (
	// Dynamic path segments are collapsed to keep label cardinality bounded
	numericIDRegex = regexp.MustCompile(`/\d+(?:/|$)`)
	ulidRegex      = regexp.MustCompile(`[0-9A-HJKMNP-TV-Z]{26}`)
	uuidRegex      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// MetricsMiddleware records request counts, latency and in-flight gauge
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.HTTPActiveRequests.Inc()
		defer metrics.HTTPActiveRequests.Dec()

		path := c.FullPath()
		if path == "" {
			path = normalizeMetricPath(c.Request.URL.Path)
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func normalizeMetricPath(path string) string {
	path = uuidRegex.ReplaceAllString(path, ":id")
	path = ulidRegex.ReplaceAllString(path, ":id")
	path = numericIDRegex.ReplaceAllString(path, "/:id/")
	return path
}

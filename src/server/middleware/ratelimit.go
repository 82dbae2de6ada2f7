package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
)

const (
	// Global limit across all endpoints
	GlobalRPS   = 100
	GlobalBurst = 200

	// Assistant chat is the expensive path
	AssistantRequestsPerWindow = 30
	AssistantWindowDuration    = time.Minute

	// Auth endpoints get the strictest window to slow credential stuffing
	AuthRequestsPerWindow = 10
	AuthWindowDuration    = 15 * time.Minute
)

var (
	globalLimiter    *httprate.RateLimiter
	assistantLimiter *httprate.RateLimiter
	authLimiter      *httprate.RateLimiter
)

func init() {
	globalLimiter = httprate.NewRateLimiter(
		GlobalRPS,
		time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)

	assistantLimiter = httprate.NewRateLimiter(
		AssistantRequestsPerWindow,
		AssistantWindowDuration,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)

	authLimiter = httprate.NewRateLimiter(
		AuthRequestsPerWindow,
		AuthWindowDuration,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// GlobalRateLimitMiddleware applies the per-IP global limit
func GlobalRateLimitMiddleware() gin.HandlerFunc {
	return wrapRateLimiter(globalLimiter)
}

// AssistantRateLimitMiddleware limits assistant chat requests
func AssistantRateLimitMiddleware() gin.HandlerFunc {
	return wrapRateLimiter(assistantLimiter)
}

// AuthRateLimitMiddleware limits login and registration attempts
func AuthRateLimitMiddleware() gin.HandlerFunc {
	return wrapRateLimiter(authLimiter)
}

// wrapRateLimiter adapts httprate's net/http middleware for gin
func wrapRateLimiter(limiter *httprate.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		exceeded := false

		limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Next()
		})).ServeHTTP(&statusCapturingWriter{ResponseWriter: c.Writer, exceeded: &exceeded}, c.Request)

		if exceeded {
			c.Abort()
		}
	}
}

// statusCapturingWriter notices when httprate wrote the 429 itself
type statusCapturingWriter struct {
	gin.ResponseWriter
	exceeded *bool
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	if status == http.StatusTooManyRequests {
		*w.exceeded = true
	}
	w.ResponseWriter.WriteHeader(status)
}

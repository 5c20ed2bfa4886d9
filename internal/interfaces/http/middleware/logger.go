package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"keygate.backend/pkg/logger"
)

// LoggerMiddleware logs HTTP requests using the structured logger.
// Paths in skip are not logged (health checks and metric scrapes).
func LoggerMiddleware(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if _, ok := skipped[path]; ok {
			return
		}
		if raw != "" {
			path = path + "?" + redactToken(c)
		}

		logger.LogRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// redactToken strips the websocket access token from logged query strings.
func redactToken(c *gin.Context) string {
	q := c.Request.URL.Query()
	if q.Has(TokenQueryParam) {
		q.Set(TokenQueryParam, "redacted")
	}
	return q.Encode()
}

package middleware

import (
	"net"
	"strings"
	"time"

	"villagestay/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	LoggerKey       = utils.LoggerKey
)

// RequestLogger tags each request with an id and stores a logger carrying it
// under LoggerKey for handlers to pick up.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		logger := base.With(zap.String("requestId", id), zap.String("clientIp", clientIP(c)))
		c.Set(LoggerKey, logger)

		start := time.Now()
		c.Next()

		if status := c.Writer.Status(); status >= 500 {
			logger.Warn("Request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)))
		}
	}
}

func clientIP(c *gin.Context) string {
	// X-Forwarded-For may hold a chain; the first entry is the client.
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.Request.RemoteAddr
}

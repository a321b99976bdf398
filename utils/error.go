package utils

import (
	"net/http"

	"villagestay/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the envelope every failed request receives.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// LoggerKey is the gin context key holding the request-scoped logger.
const LoggerKey = "logger"

// LoggerFrom returns the request-scoped logger, or the global one when the
// request carries none.
func LoggerFrom(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(LoggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return GetLogger()
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				LoggerFrom(c).Error("Unhandled panic", zap.Any("error", err), zap.String("path", c.Request.URL.Path))

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Success: false,
					Error:   "Internal server error",
					Details: "Something went wrong",
				})
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response. Internal details are
// only echoed back to the caller in development.
func JSONError(c *gin.Context, status int, message, kind string, err error) {
	logger := LoggerFrom(c)
	fields := []zap.Field{zap.Int("status", status), zap.String("kind", kind), zap.String("path", c.Request.URL.Path)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if status >= http.StatusInternalServerError {
		logger.Error(message, fields...)
	} else {
		logger.Warn(message, fields...)
	}

	resp := ErrorResponse{Success: false, Error: message, Kind: kind}
	if err != nil && config.IsDevelopment() {
		resp.Details = err.Error()
	}
	c.JSON(status, resp)
}

package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestJSONErrorLogsWithRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	scoped := zap.New(core).With(zap.String("requestId", "req-7"))

	r := gin.New()
	r.GET("/fail", func(c *gin.Context) {
		c.Set(LoggerKey, scoped)
		JSONError(c, http.StatusServiceUnavailable, "Ledger query failed", "LedgerQueryFailed", errors.New("rpc down"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "LedgerQueryFailed", body.Kind)

	entries := logs.FilterMessage("Ledger query failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "req-7", entries[0].ContextMap()["requestId"])
	assert.Equal(t, "/fail", entries[0].ContextMap()["path"])
}

func TestLoggerFromFallsBackToGlobal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Same(t, GetLogger(), LoggerFrom(c))

	c.Set(LoggerKey, "not a logger")
	assert.Same(t, GetLogger(), LoggerFrom(c))
}

package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"user-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	require.NoError(t, logger.InitWithConfig("info", "json", "stdout", ""))
	var buf bytes.Buffer
	logger.GetLogger().SetOutput(&buf)
	t.Cleanup(func() { logger.GetLogger().SetOutput(os.Stdout) })
	return &buf
}

func newLoggedEngine(status int) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/api/users", func(c *gin.Context) {
		c.Status(status)
	})
	return r
}

func TestRequestID_GeneratedAndPropagated(t *testing.T) {
	captureLogs(t)
	r := newLoggedEngine(http.StatusOK)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestLogger_Fields(t *testing.T) {
	buf := captureLogs(t)
	r := newLoggedEngine(http.StatusNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/users?pageNumber=2", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/users?pageNumber=2", entry["path"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status_code"])
	assert.Equal(t, "req-7", entry["request_id"])
}

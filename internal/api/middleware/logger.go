package middleware

import (
	"time"

	"user-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {

		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		logFields := logrus.Fields{
			"status_code": c.Writer.Status(),
			"latency":     time.Since(start),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
			"bytes":       c.Writer.Size(),
		}
		if id := c.GetString(requestIDKey); id != "" {
			logFields[requestIDKey] = id
		}

		status := c.Writer.Status()
		entry := logger.WithFields(logFields)

		switch {
		case len(c.Errors) > 0:
			entry.WithField("error", c.Errors.String()).Error("Request completed with errors")
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}

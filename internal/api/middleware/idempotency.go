package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"user-api/internal/service"
	"user-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// bodyRecorder tees the response body so it can be stored for replays
type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a request repeats an
// Idempotency-Key with the same body. The key is reserved before the handler
// runs, so a concurrent duplicate gets 409 instead of executing twice.
// Requests without the header pass through untouched; server errors are not
// remembered.
func Idempotency(svc *service.IdempotencyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" || svc == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		scope := c.Request.Method + " " + c.FullPath()

		stored, duplicate, err := svc.CheckDuplicateRequest(ctx, key, scope, body)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrIdempotencyKeyReused):
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"success": false, "message": err.Error()})
			case errors.Is(err, service.ErrIdempotencyRequestInProgress):
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
			default:
				logger.Warn("Idempotency lookup failed, processing request normally: %v", err)
				c.Next()
			}
			return
		}

		if duplicate {
			if stored.Location != "" {
				c.Header("Location", stored.Location)
			}
			c.Header("Idempotent-Replayed", "true")
			if stored.ContentType == "" {
				c.AbortWithStatus(stored.StatusCode)
				return
			}
			c.Data(stored.StatusCode, stored.ContentType, stored.ResponseBody)
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder

		remembered := false
		defer func() {
			if remembered {
				return
			}
			if err := svc.ReleaseRequest(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn("Failed to release idempotency key %s: %v", key, err)
			}
		}()

		c.Next()

		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			return
		}

		resp := service.StoredResponse{
			StatusCode:  status,
			ContentType: recorder.Header().Get("Content-Type"),
			Location:    recorder.Header().Get("Location"),
			Body:        recorder.body.Bytes(),
		}
		if err := svc.StoreProcessedRequest(ctx, key, scope, body, resp); err != nil {
			logger.Warn("Failed to remember idempotent response for key %s: %v", key, err)
			return
		}
		remembered = true
	}
}

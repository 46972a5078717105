package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker func(ctx context.Context) error

// HealthHandler handles health check requests
type HealthHandler struct {
	version  string
	checkers map[string]HealthChecker
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, checkers map[string]HealthChecker) *HealthHandler {
	if checkers == nil {
		checkers = map[string]HealthChecker{}
	}
	return &HealthHandler{
		version:  version,
		checkers: checkers,
		timeout:  2 * time.Second,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	services, healthy := h.runChecks(c.Request.Context())

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   h.version,
		Services:  services,
	}

	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, response)
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	_, ready := h.runChecks(c.Request.Context())

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now(),
	})
}

// LivenessCheck handles GET /live
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	response := map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now(),
	}

	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) runChecks(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checkers[name](ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		services[name] = "healthy"
	}
	return services, healthy
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	service string
	version string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a health handler running the given dependency checks
func NewHealthHandler(service, version string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{service: service, version: version, checks: checks}
}

// Health GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": h.service,
		"version": h.version,
		"checks":  results,
	})
}

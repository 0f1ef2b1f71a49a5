package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nutritrack-signaling/pkg/logger"
)

// Pinger is a dependency whose reachability is reported by /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler reports service and dependency health
type Handler struct {
	serviceName string
	checks      map[string]Pinger
	timeout     time.Duration
}

// NewHandler creates a health handler for the named dependencies
func NewHandler(serviceName string, checks map[string]Pinger) *Handler {
	return &Handler{
		serviceName: serviceName,
		checks:      checks,
		timeout:     2 * time.Second,
	}
}

// Health pings every dependency
// GET /health
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":       state,
		"service":      h.serviceName,
		"dependencies": deps,
	})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/analysis-service/internal/api/dto"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports the health of the service dependencies
type HealthHandler struct {
	logger   *slog.Logger
	service  string
	checkers map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{
		logger:   deps.Logger,
		service:  deps.ServiceName,
		checkers: deps.HealthCheckers,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := dto.HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Checks:  make(map[string]string, len(h.checkers)),
	}
	status := http.StatusOK

	for name, checker := range h.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			h.logger.Warn("Health check failed",
				slog.String("dependency", name),
				slog.Any("error", err),
			)
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	c.JSON(status, resp)
}

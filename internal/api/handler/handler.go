package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/analysis-service/internal/domain"
)

// AnalysisService is the job lifecycle as seen by the API
type AnalysisService interface {
	Submit(ctx context.Context, jobType string, inputs []string) (*domain.JobSummary, error)
	GetStatus(ctx context.Context, jobID string) (*domain.StatusReport, error)
	GetIssues(ctx context.Context, jobID string) ([]domain.Issue, error)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	ServiceName    string
	Analysis       AnalysisService
	HealthCheckers map[string]HealthChecker
}

// AnalysisHandler handles analysis HTTP requests
type AnalysisHandler struct {
	logger   *slog.Logger
	analysis AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler instance
func NewAnalysisHandler(deps *Dependencies) *AnalysisHandler {
	return &AnalysisHandler{
		logger:   deps.Logger,
		analysis: deps.Analysis,
	}
}

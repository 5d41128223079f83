package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/analysis-service/internal/api/dto"
	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// Submit handles POST /mythril/v1/analysis
func (h *AnalysisHandler) Submit(c *gin.Context) {
	var req dto.SubmitAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.Any("error", err))
		RespondError(c, h.logger, domain.NewValidationError("", dto.DescribeValidationError(err)))
		return
	}

	inputs, err := req.Inputs()
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	summary, err := h.analysis.Submit(c.Request.Context(), req.Type, inputs)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.SubmitAnalysisResponse{
		Result: summary.Status,
		UUID:   summary.ID,
	})
}

// GetStatus handles GET /mythril/v1/analysis/:id
func (h *AnalysisHandler) GetStatus(c *gin.Context) {
	report, err := h.analysis.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewStatusResponse(report))
}

// GetIssues handles GET /mythril/v1/analysis/:id/issues
func (h *AnalysisHandler) GetIssues(c *gin.Context) {
	issues, err := h.analysis.GetIssues(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, issues)
}

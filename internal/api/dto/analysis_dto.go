package dto

import "github.com/cuongbtq/analysis-service/internal/domain"

// SubmitAnalysisRequest carries either one contract or a list of contracts, never both
type SubmitAnalysisRequest struct {
	Type      string   `json:"type" binding:"required"`
	Contract  string   `json:"contract" binding:"omitempty,bytecode"`
	Contracts []string `json:"contracts" binding:"omitempty,min=1,dive,required,bytecode"`
}

// Inputs returns the contracts to analyze in submission order
func (r *SubmitAnalysisRequest) Inputs() ([]string, error) {
	switch {
	case r.Contract != "" && r.Contracts != nil:
		return nil, domain.NewValidationError("contract", "contract and contracts are mutually exclusive")
	case r.Contract != "":
		return []string{r.Contract}, nil
	case len(r.Contracts) > 0:
		return r.Contracts, nil
	default:
		return nil, domain.NewValidationError("contract", "either contract or contracts is required")
	}
}

// SubmitAnalysisResponse is returned when a job is queued
type SubmitAnalysisResponse struct {
	Result string `json:"result"`
	UUID   string `json:"uuid"`
}

// StatusResponse reports a job status; failed jobs carry a message instead of the id
type StatusResponse struct {
	Result  string `json:"result"`
	UUID    string `json:"uuid,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewStatusResponse converts a status report
func NewStatusResponse(report *domain.StatusReport) StatusResponse {
	if report.Status == domain.JobStatusError {
		return StatusResponse{Result: report.Status, Message: report.Error}
	}
	return StatusResponse{Result: report.Status, UUID: report.ID}
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// HealthResponse reports dependency health
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

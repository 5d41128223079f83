package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/cuongbtq/analysis-service/internal/api/dto"
	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/gin-gonic/gin"
)

// RespondError maps domain errors to HTTP status codes and aborts the request
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		rateLimitErr  *domain.RateLimitError
	)

	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		message = validationErr.Error()
	case errors.Is(err, domain.ErrJobNotReady):
		status = http.StatusBadRequest
		message = "Result is not Finished"
	case errors.Is(err, domain.ErrJobNotFound):
		status = http.StatusNotFound
		message = "Analysis does not exist with id: " + c.Param("id")
	case errors.Is(err, domain.ErrInvalidAPIKey):
		status = http.StatusUnauthorized
		message = err.Error()
	case errors.As(err, &rateLimitErr):
		status = http.StatusTooManyRequests
		message = rateLimitErr.Error()
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rateLimitErr)))
		c.Header("X-RateLimit-Window", rateLimitErr.Window)
	default:
		logger.Error("Request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Status: status, Message: message})
}

// retryAfterSeconds rounds up so clients never retry early
func retryAfterSeconds(e *domain.RateLimitError) int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

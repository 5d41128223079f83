package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuongbtq/analysis-service/internal/api/dto"
	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantHeaders map[string]string
	}{
		{
			name:        "validation",
			err:         domain.NewValidationError("type", "type is required"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: domain.NewValidationError("type", "type is required").Error(),
		},
		{
			name:        "not ready",
			err:         fmt.Errorf("lookup: %w", domain.ErrJobNotReady),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Result is not Finished",
		},
		{
			name:        "not found",
			err:         domain.ErrJobNotFound,
			wantStatus:  http.StatusNotFound,
			wantMessage: "Analysis does not exist with id: 1234",
		},
		{
			name:        "invalid key",
			err:         domain.ErrInvalidAPIKey,
			wantStatus:  http.StatusUnauthorized,
			wantMessage: domain.ErrInvalidAPIKey.Error(),
		},
		{
			name:       "rate limited rounds retry up",
			err:        &domain.RateLimitError{Window: domain.WindowOneHour, RetryAfter: 1500 * time.Millisecond},
			wantStatus: http.StatusTooManyRequests,
			wantHeaders: map[string]string{
				"Retry-After":        "2",
				"X-RateLimit-Window": domain.WindowOneHour,
			},
		},
		{
			name:       "rate limited never below one second",
			err:        &domain.RateLimitError{Window: domain.WindowFiveMin},
			wantStatus: http.StatusTooManyRequests,
			wantHeaders: map[string]string{
				"Retry-After": "1",
			},
		},
		{
			name:        "unexpected",
			err:         errors.New("connection reset"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Params = gin.Params{{Key: "id", Value: "1234"}}

			RespondError(c, logger, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.True(t, c.IsAborted())

			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			}
			for k, v := range tt.wantHeaders {
				assert.Equal(t, v, w.Header().Get(k))
			}
		})
	}
}

package router

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/analysis-service/internal/api/handler"
	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/cuongbtq/analysis-service/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// Admitter charges an account for one request
type Admitter interface {
	Admit(ctx context.Context, account *domain.Account) (ratelimit.Decision, error)
}

// RateLimitMiddleware rejects requests of accounts over any window limit.
// It must run after AuthMiddleware.
func RateLimitMiddleware(limiter Admitter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := AccountFromContext(c)
		if !ok {
			handler.RespondError(c, logger, domain.ErrInvalidAPIKey)
			return
		}

		decision, err := limiter.Admit(c.Request.Context(), account)
		if err != nil {
			handler.RespondError(c, logger, err)
			return
		}

		if err := decision.Err(); err != nil {
			handler.RespondError(c, logger, err)
			return
		}

		c.Next()
	}
}

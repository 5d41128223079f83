package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cuongbtq/analysis-service/internal/api/handler"
	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/gin-gonic/gin"
)

const accountContextKey = "account"

// Authenticator resolves a bearer token to an account
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*domain.Account, error)
}

// AuthMiddleware requires a valid "Authorization: Bearer <key>" header
func AuthMiddleware(auth Authenticator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := bearerToken(c.GetHeader("Authorization"))
		if rawKey == "" {
			handler.RespondError(c, logger, domain.ErrInvalidAPIKey)
			return
		}

		account, err := auth.Authenticate(c.Request.Context(), rawKey)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidAPIKey) {
				logger.Error("Failed to authenticate request", slog.Any("error", err))
			}
			handler.RespondError(c, logger, err)
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}

// AccountFromContext returns the account set by AuthMiddleware
func AccountFromContext(c *gin.Context) (*domain.Account, bool) {
	v, ok := c.Get(accountContextKey)
	if !ok {
		return nil, false
	}
	account, ok := v.(*domain.Account)
	return account, ok
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

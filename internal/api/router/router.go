package router

import (
	"github.com/cuongbtq/analysis-service/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// Options holds the optional cross-cutting middleware
type Options struct {
	Authenticator Authenticator
	Limiter       Admitter
	Throttle      *IPThrottle
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Health)

	analysisHandler := handler.NewAnalysisHandler(deps)

	v1 := r.Group("/mythril/v1")
	if opts.Throttle != nil {
		v1.Use(opts.Throttle.Middleware())
	}
	v1.Use(AuthMiddleware(opts.Authenticator, deps.Logger))
	v1.Use(RateLimitMiddleware(opts.Limiter, deps.Logger))
	{
		analysis := v1.Group("/analysis")
		{
			// POST /mythril/v1/analysis - Submit bytecode for analysis
			analysis.POST("", analysisHandler.Submit)

			// GET /mythril/v1/analysis/:id - Get analysis status
			analysis.GET("/:id", analysisHandler.GetStatus)

			// GET /mythril/v1/analysis/:id/issues - Get issues of a finished analysis
			analysis.GET("/:id/issues", analysisHandler.GetIssues)
		}
	}

	return r
}

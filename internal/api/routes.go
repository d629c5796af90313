package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ggokuldas06/tds-project1/internal/metrics"
	"github.com/ggokuldas06/tds-project1/internal/middleware"
)

// rateBurst is the short-window allowance on top of the per-minute
// limit.
const rateBurst = 10

// Routes assembles the router with the full middleware chain. The
// metrics endpoint is only mounted when enabled in config.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.RequestLogger(),
		middleware.Security(),
		middleware.CORS(),
		metrics.PrometheusMiddleware(),
	)

	router.GET("/", s.Health)
	router.GET("/health", s.Health)

	if s.cfg.EnableMetrics {
		router.GET("/metrics", metrics.PrometheusHandler())
	}

	limiter := middleware.NewIPRateLimiter(rate.Limit(s.cfg.RateLimitPerMinute)/60, rateBurst)

	apiGroup := router.Group("/api")
	apiGroup.POST("/build", middleware.RateLimit(limiter), s.Build)
	apiGroup.GET("/tasks/:task", s.TaskRuns)

	return router
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nci-backend/internal/services/health"
	"nci-backend/internal/session"
	"nci-backend/internal/shared/config"
	"nci-backend/internal/shared/metrics"
	"nci-backend/internal/shared/server/middleware"
	"nci-backend/internal/shared/server/respond"
)

// RouterDeps holds the handlers mounted by NewRouter.
type RouterDeps struct {
	Config         config.Config
	Health         *health.Service
	SessionHandler *session.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status())
	})
	if deps.SessionHandler != nil {
		deps.SessionHandler.RegisterRoutes(api)
	}

	return r
}

// AnalyzeRateLimit throttles analysis requests per client.
func AnalyzeRateLimit(cfg config.Config) gin.HandlerFunc {
	return middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: "ANALYZE",
		Rules: map[string]middleware.RateLimitRule{
			"ANALYZE": {Rate: cfg.AnalyzeRate, Burst: cfg.AnalyzeBurst},
		},
	})
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

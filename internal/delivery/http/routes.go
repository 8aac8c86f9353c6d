package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cotizador/backend/config"
)

// RouterDeps holds the optional collaborators of the router
type RouterDeps struct {
	Logger *zap.Logger
	// Observer receives request metrics; nil disables them
	Observer RequestObserver
	// Gatherer backs GET /metrics when metrics are enabled
	Gatherer prometheus.Gatherer
}

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, deps RouterDeps) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	if deps.Observer != nil {
		router.Use(MetricsMiddleware(deps.Observer))
	}
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.NoRoute(handler.NotFound)
	router.NoMethod(handler.MethodNotAllowed)

	// Health check endpoints, never rate limited
	router.GET("/health", handler.HealthCheck)
	router.GET("/api/v1/health", handler.HealthCheck)

	if cfg.Metrics.Enabled && deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	var limiter gin.HandlersChain
	if cfg.RateLimit.PerIP > 0 {
		limiter = append(limiter, NewIPRateLimiter(cfg.RateLimit.PerIP, cfg.RateLimit.Burst).Middleware(deps.Observer))
	}

	// Unversioned routes stay for existing webhook clients
	registerAPI(router.Group("/", limiter...), handler)

	// API v1 routes
	registerAPI(router.Group("/api/v1", limiter...), handler)

	return router
}

func registerAPI(g *gin.RouterGroup, handler *Handler) {
	g.GET("/", handler.Root)
	g.GET("/segmentos", handler.Segments)
	g.POST("/cotizar", handler.Cotizar)
}

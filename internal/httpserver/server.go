package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PratikDhanave/showmojo-webhook-service/internal/auth"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/config"
	"github.com/PratikDhanave/showmojo-webhook-service/internal/handlers"
)

// Store is what the router needs from the entity store.
type Store interface {
	handlers.ReadStore
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes. A nil Limiter disables rate
// limiting.
type Deps struct {
	Store    Store
	Ingester handlers.Ingester
	Limiter  *RateLimiter
}

// NewRouter wires public endpoints, the webhook and the read API.
// Public: /, /health, /ready, /metrics
// Bearer token: POST /webhook
// Read API: /api/v1/...
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery(), RequestID(), AccessLog(), CORS(cfg.Security.CORSOrigins))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "ShowMojo Webhook System",
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := deps.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limited := []gin.HandlerFunc{Timeout(cfg.Server.RequestTimeout)}
	if deps.Limiter != nil {
		limited = append(limited, RateLimit(deps.Limiter))
	}

	hook := r.Group("/")
	hook.Use(limited...)
	hook.Use(auth.BearerTokenMiddleware(cfg.ShowMojo.BearerToken))
	handlers.RegisterWebhookRoutes(hook, deps.Ingester, cfg.Server.MaxBodyBytes)

	api := r.Group("/api/v1")
	api.Use(limited...)
	handlers.RegisterEventRoutes(api, deps.Store)
	handlers.RegisterShowingRoutes(api, deps.Store)
	handlers.RegisterListingRoutes(api, deps.Store)
	handlers.RegisterProspectRoutes(api, deps.Store)
	handlers.RegisterStatsRoutes(api, deps.Store)

	return r
}

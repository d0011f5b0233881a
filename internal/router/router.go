package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-rmib/internal/config"
	"github.com/stemsi/exstem-rmib/internal/handler"
	"github.com/stemsi/exstem-rmib/internal/middleware"
	"github.com/stemsi/exstem-rmib/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures the kiosk routes. ctx bounds background helpers
// such as the rate limiter's sweeper.
func SetupRouter(ctx context.Context, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Session API ────────────────────────────────────────────────
	actionLimiter := middleware.NewRateLimiter(ctx, cfg.ActionRateLimit, time.Minute)

	api := router.Group("/api/v1/session")
	api.Use(middleware.NoStore())
	{
		api.GET("", handlers.Session.GetSession)
		api.GET("/categories", handlers.Session.GetCategories)
		api.POST("/start", handlers.Session.StartSession)
		api.POST("/actions", actionLimiter.Middleware(), handlers.Session.PostAction)
	}

	// ─── 2. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/session", handlers.WS.SessionStream)
	}

	return router
}

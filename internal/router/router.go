package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/handler"
	"github.com/stemsi/exstem-practice/internal/middleware"
	"github.com/stemsi/exstem-practice/internal/response"
	"github.com/stemsi/exstem-practice/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	requireLogin := []gin.HandlerFunc{
		middleware.RequireJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	}

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/logout", append(requireLogin, handlers.Auth.Logout)...)
		auth.GET("/me", append(requireLogin, handlers.Auth.Me)...)
	}

	// ─── 2. Sessions Group (JWT + Single Device) ───────────────────────
	sessions := router.Group("/api/v1/sessions")
	sessions.Use(requireLogin...)
	{
		sessions.POST("", handlers.Session.CreateSession)
		sessions.GET("", handlers.Session.ListSessions)
		sessions.GET("/:id", handlers.Session.GetSession)
		sessions.GET("/:id/results", handlers.Session.GetResults)
		sessions.GET("/:id/activity", handlers.Session.GetActivity)
	}

	// ─── 3. Module Stats Group ─────────────────────────────────────────
	modules := router.Group("/api/v1/modules")
	modules.Use(requireLogin...)
	{
		modules.GET("/stats", handlers.Session.ListModuleStats)
		modules.GET("/:module/stats", handlers.Session.GetModuleStats)
	}

	// ─── 4. WebSocket Group (token query) ──────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(requireLogin...)
	{
		ws.GET("/sessions/:id/stream", handlers.WS.SessionStream)
	}

	return router
}

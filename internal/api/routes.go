package api

import (
	"github.com/almajlis/backend/internal/api/handlers"
	"github.com/almajlis/backend/internal/config"
	"github.com/almajlis/backend/internal/game"
	"github.com/almajlis/backend/internal/middleware"
	"github.com/almajlis/backend/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// SetupRoutes configures all API routes. db may be nil (memory store), in
// which case the admin endpoints are not mounted.
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config, mgr *game.MatchManager, hub *ws.Hub) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/config", handlers.GetConfig(cfg))
		v1.GET("/categories", handlers.ListCategories(mgr))

		// Live board viewers; tile content stays hidden until opened
		v1.GET("/matches/:id/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleMatchWebSocket(hub, mgr))

		authed := v1.Group("")
		authed.Use(handlers.SessionMiddleware(cfg, mgr.Store()))
		{
			authed.GET("/credits", handlers.GetCredits(mgr))

			matches := authed.Group("/matches")
			{
				matches.POST("", handlers.CreateMatch(mgr, rdb, cfg))
				matches.GET("", handlers.ListMatches(mgr))
				matches.GET("/:id", handlers.GetMatch(mgr))
				matches.GET("/:id/results", handlers.GetResults(mgr))
				matches.POST("/:id/end", handlers.EndMatch(mgr))
				matches.GET("/:id/tiles/:tileId", handlers.RevealTile(mgr))
				matches.POST("/:id/tiles/:tileId/resolve", handlers.ResolveTile(mgr))
			}
		}

		if db != nil {
			adminGroup := v1.Group("/admin")
			adminGroup.Use(handlers.AdminAuthMiddleware(db))
			{
				adminGroup.POST("/credits", handlers.AdminGrantCredits(db, mgr))
				adminGroup.GET("/audit", handlers.GetAdminAuditLogs(db))
				adminGroup.GET("/config", handlers.GetAdminRuntimeConfig(db))
				adminGroup.PUT("/config/:key", handlers.UpdateAdminRuntimeConfig(db, cfg))
			}
		} else {
			log.Println("[API] admin endpoints disabled (no database)")
		}
	}
}

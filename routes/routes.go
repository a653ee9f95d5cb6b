package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go_stock_collector/config"
	"go_stock_collector/controllers"
	"go_stock_collector/middleware"
	"go_stock_collector/services/barstore"
	"go_stock_collector/services/collector"
	"go_stock_collector/services/stream"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, store *barstore.Store, col *collector.Collector, hub *stream.Hub) {
	// Initialize controllers
	barController := controllers.NewBarController(store)
	syncController := controllers.NewSyncController(col)
	authController := controllers.NewAuthController(db, cfg.JWTSecret)

	rateLimiter := middleware.NewRateLimiter(120, time.Minute)

	// API v1 group
	api := router.Group("/api/v1")
	api.Use(rateLimiter.Middleware())
	{
		api.POST("/auth/login", authController.Login)

		api.GET("/tickers", barController.GetTickers)

		bars := api.Group("/bars")
		{
			bars.GET("/:ticker", barController.GetBars)
			bars.GET("/:ticker/latest", barController.GetLatestBar)
		}

		// Sync control requires an operator token
		syncRoutes := api.Group("/sync")
		{
			syncRoutes.GET("/status", syncController.GetStatus)

			protected := syncRoutes.Group("")
			protected.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
			{
				protected.POST("", syncController.TriggerAll)
				protected.POST("/:ticker", syncController.TriggerTicker)
			}
		}
	}

	// WebSocket stream of newly persisted bars
	router.GET("/ws/bars", func(c *gin.Context) {
		hub.HandleWebSocket(c.Writer, c.Request)
	})
}

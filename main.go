package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"go_stock_collector/config"
	"go_stock_collector/models"
	"go_stock_collector/routes"
	"go_stock_collector/scheduler"
	"go_stock_collector/services/analysis"
	"go_stock_collector/services/archive"
	"go_stock_collector/services/barstore"
	"go_stock_collector/services/collector"
	"go_stock_collector/services/kisapi"
	"go_stock_collector/services/stream"
)

func main() {
	log.Println("==============================================")
	log.Println("  Stock Data Collector - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	tickers := cfg.Tickers()
	if len(tickers) == 0 {
		log.Println("Warning: no tickers configured, collection will be idle")
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// An unreachable database at startup is the one fatal error here;
	// everything after this point degrades per instrument instead.
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	log.Println("Running database migrations...")
	if err := models.MigrateBarModels(db); err != nil {
		log.Fatalf("Bar table migration failed: %v", err)
	}
	if err := models.MigrateSignalModels(db); err != nil {
		log.Fatalf("Signal table migration failed: %v", err)
	}
	if err := models.MigrateAdminModels(db); err != nil {
		log.Fatalf("Admin table migration failed: %v", err)
	}
	if err := models.SeedAdminUser(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Printf("Warning: could not seed admin user: %v", err)
	}
	log.Println("Database migrations completed successfully")

	// Collaborators
	store := barstore.NewStore(db)
	source := kisapi.NewClient(cfg.KISBaseURL, cfg.KISAppKey, cfg.KISAppSecret)

	hub := stream.NewHub()
	go hub.Run()

	barArchive, err := archive.NewMongoArchive(cfg.MongoURI)
	if err != nil {
		log.Printf("Warning: bar archive unavailable: %v", err)
		barArchive = nil
	}

	col := collector.New(store, source, tickers,
		time.Duration(cfg.FetchDelayMS)*time.Millisecond)
	col.AddPublisher(hub)
	if barArchive != nil && barArchive.Enabled() {
		col.AddPublisher(barArchive)
	}

	analyzer := analysis.NewAnalyzer(db, store, tickers)

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	setupHealthEndpoints(router, db)
	routes.SetupRoutes(router, cfg, db, store, col, hub)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Start background jobs
	jobScheduler := scheduler.NewScheduler(col, analyzer,
		cfg.SyncIntervalMin, cfg.AnalysisIntervalMin, cfg.RunMode != "collect")
	jobScheduler.Start()

	log.Printf("'%s' mode configured, collecting %d tickers every %d minute(s)",
		cfg.RunMode, len(tickers), cfg.SyncIntervalMin)

	gracefulShutdown(server, jobScheduler, hub, barArchive, db)
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine, db *gorm.DB) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not reachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server and jobs
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, hub *stream.Hub, barArchive *archive.MongoArchive, db *gorm.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	jobScheduler.Stop()
	hub.Shutdown()
	if barArchive != nil {
		barArchive.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
		log.Println("Database connection closed")
	}

	log.Println("Server shutdown completed")
}

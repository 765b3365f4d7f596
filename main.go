package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"webfolio/api/database"
	"webfolio/api/handlers"
	"webfolio/api/logger"
	"webfolio/api/middleware"
	"webfolio/api/store"
)

// Login rate limit: 5 attempts per 15 minutes per IP.
const (
	loginRateLimit  = 5
	loginRateWindow = 15 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "No .env file found: %v\n", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Development: os.Getenv("GIN_MODE") != "release",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()
	log = log.With(logger.String("service", "webfolio-api"))

	// PostgreSQL holds admin accounts.
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Error("Failed to initialize PostgreSQL database", logger.Error(err))
		return 1
	}
	defer func() { _ = dbClient.Close() }()

	// ClickHouse holds page views and behavioral events.
	chClient, err := database.NewClickHouseDB()
	if err != nil {
		log.Error("Failed to initialize ClickHouse database", logger.Error(err))
		return 1
	}
	defer func() { _ = chClient.Close() }()

	userStore := store.NewUserStore(dbClient.DB)
	analyticsStore := store.NewAnalyticsStore(chClient, log)

	authHandlers := handlers.NewAuthHandlers(userStore, log)
	trackHandlers := handlers.NewTrackHandlers(analyticsStore, log)
	statsHandlers := handlers.NewStatsHandlers(analyticsStore, log)

	// done stops background middleware goroutines on shutdown.
	done := make(chan struct{})
	defer close(done)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := r.Group("/api")
	{
		api.POST("/login",
			middleware.RateLimiter(loginRateLimit, loginRateWindow, done),
			authHandlers.Login,
		)
		api.POST("/logout", authHandlers.Logout)

		// Collection endpoints are public; bot traffic is accepted but
		// not recorded.
		track := api.Group("/track")
		track.Use(middleware.BotFilter())
		{
			track.POST("/pageview", trackHandlers.TrackPageView)
			track.POST("/events", trackHandlers.TrackEvents)
		}

		// Dashboard endpoints require a valid admin session.
		protected := api.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/verify", authHandlers.Verify)

			stats := protected.Group("/stats")
			{
				stats.GET("/overview", statsHandlers.GetOverview)
				stats.GET("/pages", statsHandlers.GetPages)
				stats.GET("/realtime", statsHandlers.GetRealtime)
				stats.GET("/acquisition", statsHandlers.GetAcquisition)
				stats.GET("/visitors", statsHandlers.GetVisitors)
				stats.GET("/export", statsHandlers.ExportPageViews)
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", logger.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("Server failed", logger.Error(err))
		return 1
	case <-quit:
	}

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", logger.Error(err))
		return 1
	}

	log.Info("Server exited cleanly")
	return 0
}

package main

// Tunecast - music distribution API server entry point

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tunecast/tunecast/src/config"
	"github.com/tunecast/tunecast/src/database"
	"github.com/tunecast/tunecast/src/scheduler"
	"github.com/tunecast/tunecast/src/server/handler"
	"github.com/tunecast/tunecast/src/server/middleware"
	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("⚠️ Config load problem (continuing with defaults): %v", err)
	}

	mode := config.DetectMode(cfg.Mode)
	if mode == config.ModeProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Printf("🚀 %s %s starting in %s mode", cfg.Server.Branding.Title, Version, mode)

	db, err := database.InitDBWithConfig(&database.Config{
		Type:     cfg.Database.Type,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: databaseName(cfg),
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("❌ Database initialization failed: %v", err)
	}
	defer db.Close()
	log.Printf("💾 Database ready (%s)", db.Driver)

	// Optional cache; disabled gracefully when Redis is absent
	cache := service.NewCacheManager()
	if cache.IsEnabled() {
		log.Println("⚡ Cache enabled")
	}
	defer cache.Close()

	hub := service.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	notifier := service.NewNotifier(db.DB, hub)
	assistant := service.NewAssistantService(
		&models.AssistantMessageModel{DB: db.DB},
		&models.EntitlementModel{DB: db.DB},
		&models.TopicAnalysisModel{DB: db.DB},
		config.OpenAIKey(),
	)
	linkParser := service.NewLinkParser(&models.ReleaseModel{DB: db.DB})

	// Hot-reload plan prices and branding on config file changes
	if path := config.ConfigFilePath(); path != "" {
		watcher, err := service.NewConfigWatcher(path, func() {
			if reloaded, err := config.LoadConfig(); err == nil {
				cfg.Plans = reloaded.Plans
				cfg.Server.Branding = reloaded.Server.Branding
			}
		})
		if err != nil {
			log.Printf("⚠️ Config watcher unavailable: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	sched := scheduler.NewScheduler(db.DB)
	if err := scheduler.RegisterTasks(sched, db.DB, notifier, assistant); err != nil {
		log.Fatalf("❌ Scheduler setup failed: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	router := buildRouter(db, cfg, cache, hub, notifier, assistant, linkParser)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("🌐 Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Forced shutdown: %v", err)
	}
	log.Println("👋 Goodbye")
}

func databaseName(cfg *config.Config) string {
	if cfg.Database.Type == "" || cfg.Database.Type == "sqlite" {
		return cfg.Database.Path
	}
	return cfg.Database.Name
}

func buildRouter(db *database.DB, cfg *config.Config, cache *service.CacheManager, hub *service.WebSocketHub,
	notifier *service.Notifier, assistant *service.AssistantService, linkParser *service.LinkParser) *gin.Engine {

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.GlobalRateLimitMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Cron-Secret"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	healthHandler := &handler.HealthHandler{DB: db.DB, Version: Version, StartTime: time.Now()}
	authHandler := &handler.AuthHandler{DB: db.DB, TrialDays: cfg.Plans.TrialDays}
	releaseHandler := &handler.ReleaseHandler{DB: db.DB, LinkParser: linkParser, Cache: cache}
	subHandler := &handler.SubscriptionHandler{DB: db.DB, Config: cfg}
	assistantHandler := &handler.AssistantHandler{DB: db.DB, Assistant: assistant}
	adminHandler := &handler.AdminHandler{DB: db.DB, Config: cfg, Cache: cache}
	earningsHandler := &handler.EarningsUploadHandler{DB: db.DB}
	publicHandler := &handler.PublicHandler{DB: db.DB, Cache: cache}
	webhookHandler := &handler.WebhookHandler{DB: db.DB, Secret: config.BillingWebhookSecret()}
	cronHandler := &handler.CronHandler{DB: db.DB, Notifier: notifier, Assistant: assistant}
	wsHandler := &handler.WebSocketHandler{Hub: hub}

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/readyz", healthHandler.Readyz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		// Public surface
		api.GET("/public/release/:slug", publicHandler.GetRelease)
		api.GET("/plans", subHandler.Plans)
		api.POST("/billing/webhook", webhookHandler.Handle)

		auth := api.Group("/auth")
		auth.Use(middleware.AuthRateLimitMiddleware())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Authenticated artist surface
		user := api.Group("")
		user.Use(middleware.RequireAuth(db.DB))
		{
			user.GET("/auth/me", authHandler.Me)
			user.POST("/tokens", authHandler.CreateToken)
			user.GET("/tokens", authHandler.ListTokens)
			user.DELETE("/tokens/:id", authHandler.RevokeToken)

			user.POST("/releases", releaseHandler.Create)
			user.GET("/releases", releaseHandler.List)
			user.GET("/releases/:id", releaseHandler.Get)
			user.PUT("/releases/:id/step", releaseHandler.SaveStep)
			user.DELETE("/releases/:id", releaseHandler.Delete)
			user.POST("/releases/:id/links", releaseHandler.ParseLinks)

			user.GET("/subscription", subHandler.Get)
			user.GET("/subscription/entitlements", subHandler.Entitlements)

			assistantGroup := user.Group("/assistant")
			{
				assistantGroup.POST("/chat", middleware.AssistantRateLimitMiddleware(), assistantHandler.Chat)
				assistantGroup.GET("/history", assistantHandler.History)
				assistantGroup.GET("/unread", assistantHandler.Unread)
				assistantGroup.POST("/read", assistantHandler.MarkRead)
			}

			user.GET("/ws", wsHandler.Connect)
		}

		// Admin surface
		admin := api.Group("/admin")
		admin.Use(middleware.RequireAuth(db.DB), middleware.AdminAuthMiddleware(db.DB))
		{
			admin.GET("/releases/queue", adminHandler.ReviewQueue)
			admin.GET("/releases/:id", adminHandler.GetRelease)
			admin.POST("/releases/:id/approve", adminHandler.Approve)
			admin.POST("/releases/:id/reject", adminHandler.Reject)
			admin.POST("/releases/:id/sent", adminHandler.MarkSent)
			admin.POST("/releases/:id/takedown", adminHandler.RequestTakedown)
			admin.POST("/releases/:id/takedown/complete", adminHandler.CompleteTakedown)

			admin.GET("/users", adminHandler.ListUsers)
			admin.PUT("/users/:id/identity", adminHandler.SetIdentity)

			admin.GET("/metrics", adminHandler.Metrics)
			admin.GET("/topics", adminHandler.TopicAnalysis)

			admin.POST("/earnings/upload", earningsHandler.Upload)
			admin.GET("/earnings/uploads", earningsHandler.History)
			admin.GET("/earnings/summary", earningsHandler.Summary)
		}

		// Cron triggers for external schedulers
		cronGroup := api.Group("/cron")
		cronGroup.Use(middleware.CronAuthMiddleware(config.CronSecret()))
		{
			cronGroup.POST("/notifications", cronHandler.TriggerNotifications)
			cronGroup.POST("/topic-analysis", cronHandler.TriggerTopicAnalysis)
			cronGroup.POST("/subscriptions", cronHandler.TriggerSubscriptionSweep)
		}
	}

	return router
}

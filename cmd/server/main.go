package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyplan-backend/internal/config"
	"studyplan-backend/internal/database"
	"studyplan-backend/internal/handlers"
	"studyplan-backend/internal/middleware"
	"studyplan-backend/internal/repository"
	"studyplan-backend/internal/router"
	"studyplan-backend/internal/services"
	"studyplan-backend/internal/websocket"
	"studyplan-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting StudyPlan Backend...")
	ctx := context.Background()

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	store := repository.NewStore(pool)
	jobRepo := repository.NewJobRepo(pool)
	preferencesRepo := repository.NewPreferencesRepo(pool)

	// ──── Initialize Services ────
	analyticsOpts, err := services.AnalyticsOptionsFor(
		cfg.Analytics.RiskBreakdownPreset,
		cfg.Analytics.RiskCompositionPreset,
		cfg.Analytics.UrgencyTauDays,
	)
	if err != nil {
		log.Fatalf("✗ Analytics options: %v", err)
	}

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	chartCache := services.NewChartCache(redisClients.Cache, cfg.ChartCacheTTL)
	publisher := services.NewRedisPublisher(redisClients.PubSub)

	sessionService := services.NewSessionService(store, publisher, chartCache)
	analyticsService := services.NewAnalyticsService(store, chartCache, analyticsOpts)
	estimateService := services.NewEstimateService(store, chartCache)
	jobQueue := worker.NewRedisQueue(redisClients.Queue)

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		jobRepo,
		estimateService,
		publisher,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	dueNotifier := services.NewDueSessionNotifier(store, publisher)
	dueNotifier.Start()
	log.Println("✓ Due-session notifier started")

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	sessionStartLimiter := middleware.NewRateLimiter(cfg.SessionStartRateLimit, time.Minute)

	r := router.New(
		jwtAuth,
		router.Handlers{
			Sessions:    handlers.NewStudySessionHandler(sessionService),
			Analytics:   handlers.NewAnalyticsHandler(analyticsService),
			Estimates:   handlers.NewEstimateHandler(estimateService, jobRepo, jobQueue),
			Jobs:        handlers.NewJobHandler(jobRepo),
			Preferences: handlers.NewPreferencesHandler(preferencesRepo),
			WebSocket:   wsHub.HandleWebSocket,
		},
		sessionStartLimiter,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		dueNotifier.Stop()
		sessionStartLimiter.Stop()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ StudyPlan Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

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

	"quizsmith-backend/internal/config"
	"quizsmith-backend/internal/database"
	"quizsmith-backend/internal/handlers"
	"quizsmith-backend/internal/llm"
	"quizsmith-backend/internal/middleware"
	"quizsmith-backend/internal/pipeline"
	"quizsmith-backend/internal/repository"
	"quizsmith-backend/internal/router"
	"quizsmith-backend/internal/services"
	"quizsmith-backend/internal/session"
	"quizsmith-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting QuizSmith Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	usageRepo := repository.NewUsageRepo(pool)
	attemptRepo := repository.NewAttemptRepo(pool)

	// ──── Step 5: Initialize Completion Gateways ────
	ctx := context.Background()
	geminiGateway, err := llm.NewGeminiGateway(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiGateway.Close()
	log.Println("✓ Gemini gateway initialized")

	var localGateway llm.Gateway
	if cfg.LocalModelURL != "" {
		localGateway = llm.NewLocalGateway(cfg.LocalModelURL, cfg.LocalModelName)
		log.Printf("✓ Local fallback gateway enabled (%s)", cfg.LocalModelURL)
	}
	gateway := llm.NewFallbackGateway(geminiGateway, localGateway, llm.DefaultMaxAttempts)

	// ──── Step 6: Initialize Quiz Infrastructure ────
	generator := pipeline.NewGenerator(gateway, cfg.GeminiModel)
	protocol := session.NewProtocol(cfg.SessionSecret)
	store := session.NewRedisStore(redisClients.Store)

	sweeper := session.NewSweeper(store, time.Duration(cfg.SessionSweepIntervalMins)*time.Minute)
	sweeper.Start()
	log.Printf("✓ Session sweeper started (every %dm)", cfg.SessionSweepIntervalMins)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	quizService := services.NewQuizService(
		generator,
		protocol,
		store,
		usageRepo,
		attemptRepo,
		redisClients.PubSub,
		cfg.QuizTimeLimitSeconds,
		cfg.MaxQuestionsPerQuiz,
		cfg.PromptTokenCostPerM,
		cfg.CompletionTokenCostPerM,
	)
	extractService := services.NewExtractService()
	youtubeService := services.NewYouTubeService(geminiGateway)

	// ──── Initialize Handlers ────
	quizHandler := handlers.NewQuizHandler(quizService)
	contextHandler := handlers.NewContextHandler(extractService, youtubeService)
	usageHandler := handlers.NewUsageHandler(usageRepo, attemptRepo)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		quizHandler,
		contextHandler,
		usageHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("✓ QuizSmith Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

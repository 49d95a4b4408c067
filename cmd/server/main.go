package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/auth"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/capabilities"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/config"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/generation"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/handler"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/middleware"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/repository/postgres"
	postgresChat "github.com/m-levi/MC-Copy-Command-Center-sub004/internal/repository/postgres/chat"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/providers"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/streaming"
	"github.com/m-levi/MC-Copy-Command-Center-sub004/internal/service/chat/tools"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
	)

	// Supabase JWT verification via JWKS
	jwtVerifier, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Logger: logger,
	}
	conversationRepo := postgresChat.NewConversationRepository(repoConfig)
	messageRepo := postgresChat.NewMessageRepository(repoConfig)
	brandRepo := postgresChat.NewBrandRepository(repoConfig)
	customModeRepo := postgresChat.NewCustomModeRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	providerRegistry := providers.NewRegistry(cfg.AnthropicAPIKey)

	capabilityRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}
	logger.Info("capability registry initialized")

	dispatcher := tools.NewDispatcher(logger)
	streamHandler := streaming.NewHandler(dispatcher, logger)

	// Single process-wide generation registry. Streams run adopted here;
	// completed results are persisted through the chat repositories.
	manager := generation.NewManager(generation.Config{}, messageRepo, conversationRepo, logger)
	defer manager.Close()

	chatHandler := handler.NewChatHandler(
		providerRegistry,
		capabilityRegistry,
		streamHandler,
		customModeRepo,
		manager,
		cfg,
		logger,
	)
	conversationHandler := handler.NewConversationHandler(
		conversationRepo,
		messageRepo,
		txManager,
		manager,
		logger,
	)
	brandHandler := handler.NewBrandHandler(brandRepo, logger)
	modelsHandler := handler.NewModelsHandler(capabilityRegistry, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Generation routes
	mux.HandleFunc("POST /api/chat", chatHandler.Generate)

	// Conversation routes
	mux.HandleFunc("POST /api/conversations", conversationHandler.CreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}", conversationHandler.GetConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", conversationHandler.DeleteConversation)
	mux.HandleFunc("GET /api/conversations/{id}/messages", conversationHandler.ListMessages)
	mux.HandleFunc("POST /api/conversations/{id}/stop", conversationHandler.StopGeneration)
	mux.HandleFunc("GET /api/conversations/{id}/generation", conversationHandler.GetGeneration)
	mux.HandleFunc("POST /api/conversations/{id}/pending-update", conversationHandler.ConsumePendingUpdate)

	// Brand routes
	mux.HandleFunc("GET /api/brands/{id}", brandHandler.GetBrand)
	mux.HandleFunc("GET /api/brands/{id}/conversations", conversationHandler.ListConversations)

	// Completion notification routes
	mux.HandleFunc("GET /api/notifications", conversationHandler.ListNotifications)
	mux.HandleFunc("DELETE /api/notifications", conversationHandler.DismissAllNotifications)
	mux.HandleFunc("DELETE /api/notifications/{id}", conversationHandler.DismissNotification)

	// Model capabilities routes
	mux.HandleFunc("GET /api/models/capabilities", modelsHandler.GetCapabilities)

	// Middleware chain, applied in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	var root http.Handler = mux
	root = middleware.AuthMiddleware(jwtVerifier)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived NDJSON streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then close the manager
	// so in-flight generations cancel and finish their bookkeeping.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}

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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"skillswap-backend/internal/config"
	"skillswap-backend/internal/database"
	chatHandler "skillswap-backend/internal/handler/http/chat"
	userHandler "skillswap-backend/internal/handler/http/user"
	wsHandler "skillswap-backend/internal/handler/ws"
	"skillswap-backend/internal/middleware"
	"skillswap-backend/internal/repository/postgres"
	redisRepo "skillswap-backend/internal/repository/redis"
	"skillswap-backend/internal/service/call"
	"skillswap-backend/internal/service/chat"
	"skillswap-backend/internal/service/presence"
	"skillswap-backend/pkg/jwt"
	"skillswap-backend/pkg/logger"
)

func main() {
	// 1. Load environment and configuration
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize logging
	if err := logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 3. Connect to Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	postgresDB, err := database.NewPostgresDB(ctx, &cfg.Postgres)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer postgresDB.Close()

	logger.Info("Connected to Postgres")

	// 4. Connect to Redis
	redisDB, err := database.NewRedisDB(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()

	logger.Info("Connected to Redis")

	// 5. Initialize repositories
	userRepo := postgres.NewUserRepository(postgresDB.Pool)
	requestRepo := postgres.NewRequestRepository(postgresDB.Pool)
	messageRepo := postgres.NewMessageRepository(postgresDB.Pool)
	blockedRepo := postgres.NewBlockedUserRepository(postgresDB.Pool)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB.Client)

	// 6. Initialize the realtime subsystem
	registry := presence.NewRegistry(userRepo, presenceRepo)
	relay := chat.NewRelay(requestRepo, messageRepo, blockedRepo)
	coordinator := call.NewCoordinator(registry, requestRepo, blockedRepo, cfg.Call.RingTimeout)

	sessions := jwt.NewSessionManager(cfg.JWT.Secret, cfg.JWT.SessionExpiry)
	gateway := wsHandler.NewGateway(registry, relay, coordinator, sessions, cfg.Server.AllowedOrigins)

	// 7. Initialize HTTP handlers
	userHdlr := userHandler.NewHandler(userRepo)
	chatHdlr := chatHandler.NewHandler(relay)

	// 8. Set up routing
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "realtime-service"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws", gateway.ServeWS)

	api := router.Group("/api", middleware.Auth(sessions))
	{
		api.GET("/users/online", userHdlr.GetOnlineUsers)
		api.GET("/requests/:id/messages", chatHdlr.GetMessages)
	}

	// 9. Start server with graceful shutdown
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Realtime service listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down realtime service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}

	logger.Info("Realtime service stopped")
}

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
	"go.uber.org/zap"

	"github.com/beleza-commerce/service-promo/internal/application"
	"github.com/beleza-commerce/service-promo/internal/cache"
	"github.com/beleza-commerce/service-promo/internal/config"
	promoEvents "github.com/beleza-commerce/service-promo/internal/events"
	"github.com/beleza-commerce/service-promo/internal/handler"
	"github.com/beleza-commerce/service-promo/internal/repository"
	"github.com/beleza-commerce/service-promo/pkg/auth"
	"github.com/beleza-commerce/service-promo/pkg/database"
	"github.com/beleza-commerce/service-promo/pkg/health"
	"github.com/beleza-commerce/service-promo/pkg/kafka"
	"github.com/beleza-commerce/service-promo/pkg/logger"
	"github.com/beleza-commerce/service-promo/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-promo")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-promo",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.PromoCodeModel{}, &repository.PromoUsageModel{}, &repository.CustomerOrderModel{}); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Connect to Redis
	redisClient, err := cache.NewRedisClient(context.Background(), cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB)
	if err != nil {
		zapLogger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()

	// Initialize repositories
	promoRepo := cache.NewCachedPromoRepository(repository.NewGormPromoRepository(db), redisClient, zapLogger)
	orderHistory := repository.NewGormOrderHistory(db)

	// Initialize application services
	promoService := application.NewPromoService(promoRepo, orderHistory, zapLogger)
	usageService := application.NewUsageService(promoRepo, kafkaProducer, zapLogger)
	adminService := application.NewAdminService(promoRepo, zapLogger)

	// Initialize Kafka consumer for order events
	consumerGroupID := cfg.KafkaConfig.GroupPrefix + "promo-service"
	orderConsumer := promoEvents.NewOrderEventConsumer(
		cfg.KafkaConfig.Brokers,
		consumerGroupID,
		usageService,
		orderHistory,
		zapLogger,
	)
	defer orderConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting order event consumer")
		if err := orderConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("order event consumer failed", zap.Error(err))
			}
		}
	}()

	// Initialize HTTP handlers
	promoHandler := handler.NewPromoHandler(promoService)
	adminHandler := handler.NewAdminPromoHandler(adminService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, redisClient, "service-promo")
	healthHandler.RegisterRoutes(router)

	// Register API routes
	apiV1 := router.Group("/api/v1")
	promoHandler.RegisterRoutes(apiV1, jwtManager)
	adminHandler.RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-promo...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-promo stopped")
}

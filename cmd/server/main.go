package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ccc-cruise/service-promo/internal/application"
	"github.com/ccc-cruise/service-promo/internal/auth"
	"github.com/ccc-cruise/service-promo/internal/cache"
	"github.com/ccc-cruise/service-promo/internal/config"
	"github.com/ccc-cruise/service-promo/internal/database"
	promoEvents "github.com/ccc-cruise/service-promo/internal/events"
	"github.com/ccc-cruise/service-promo/internal/handler"
	"github.com/ccc-cruise/service-promo/internal/kafka"
	"github.com/ccc-cruise/service-promo/internal/logger"
	"github.com/ccc-cruise/service-promo/internal/middleware"
	"github.com/ccc-cruise/service-promo/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
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
	db, err := database.Connect(cfg.DBConfig.DSN(), zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.PromoCodeModel{},
			&repository.UsageEntryModel{},
			&repository.CapacityCounterModel{},
			&repository.TravelerModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.URL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize repositories and transaction manager
	txManager := repository.NewTxManager(db)
	promoRepo := repository.NewGormPromoRepository(db)
	usageRepo := repository.NewGormUsageRepository(db)
	capacityLedger := repository.NewGormCapacityLedger(db)
	travelerRepo := repository.NewGormTravelerRepository(db)

	// Seed configured capacity caps
	if err := capacityLedger.Seed(context.Background(), cfg.CapacityCaps); err != nil {
		zapLogger.Fatal("failed to seed capacity counters", zap.Error(err))
	}

	// Initialize Kafka producer and event publisher
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()
	publisher := promoEvents.NewPromoEventPublisher(kafkaProducer, zapLogger)

	// Optional Redis cache for the admin stats snapshot
	var statsCache *cache.Cache
	if cfg.RedisAddr != "" {
		statsCache, err = cache.New(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			zapLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer statsCache.Close()
	}

	// Initialize application services
	reservationService := application.NewReservationService(
		txManager, promoRepo, usageRepo, capacityLedger, travelerRepo, publisher, zapLogger,
	)
	adminService := application.NewAdminService(
		txManager, promoRepo, usageRepo, capacityLedger, statsCache, zapLogger,
	)

	// Initialize JWT manager for the admin surface
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 12*time.Hour)

	// Initialize Kafka consumer for booking events
	consumerGroupID := cfg.KafkaConfig.GroupPrefix + "promo-service"
	bookingConsumer := promoEvents.NewBookingEventConsumer(
		cfg.KafkaConfig.Brokers,
		consumerGroupID,
		reservationService,
		zapLogger,
	)
	defer bookingConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting booking event consumer")
		if err := bookingConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("booking event consumer failed", zap.Error(err))
			}
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.Recovery(zapLogger))
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())

	// Register health check routes
	healthHandler := handler.NewHealthHandler(db, "service-promo")
	healthHandler.RegisterRoutes(router)

	// Register promo routes
	apiV1 := router.Group("/api/v1")
	promoHandler := handler.NewPromoHandler(reservationService)
	promoHandler.RegisterRoutes(apiV1)

	adminHandler := handler.NewAdminHandler(adminService)
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

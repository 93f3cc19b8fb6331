package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soul-service/soul_service/internal/api/handlers"
	"github.com/soul-service/soul_service/internal/api/routes"
	"github.com/soul-service/soul_service/internal/domain/services/distribution"
	"github.com/soul-service/soul_service/internal/domain/services/events"
	"github.com/soul-service/soul_service/internal/domain/services/ledger"
	"github.com/soul-service/soul_service/internal/domain/services/referral"
	"github.com/soul-service/soul_service/internal/domain/services/treasury"
	"github.com/soul-service/soul_service/internal/domain/services/users"
	"github.com/soul-service/soul_service/internal/infrastructure/cache"
	"github.com/soul-service/soul_service/internal/infrastructure/config"
	"github.com/soul-service/soul_service/internal/infrastructure/database"
	"github.com/soul-service/soul_service/internal/infrastructure/repositories"
	"github.com/soul-service/soul_service/internal/workers/referral_commission"
	"github.com/soul-service/soul_service/internal/workers/reward_distribution"
	"github.com/soul-service/soul_service/pkg/logger"
	"github.com/soul-service/soul_service/pkg/metrics"
	"github.com/soul-service/soul_service/pkg/tracing"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	// Initialize database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database connection", "error", err)
		}
	}()

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Initialize Redis cache (optional)
	var redisCache cache.RedisClient
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisClient(&cfg.Redis, log.Zap())
		if err != nil {
			log.Warn("Redis unavailable, wallet reads go uncached", "error", err)
		} else {
			defer redisCache.Close()
		}
	}

	// Repositories
	walletRepo := repositories.NewWalletRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	inviteRepo := repositories.NewInviteRepository(db)
	userRepo := repositories.NewUserRepository(db)
	txManager := database.NewTxManager(db)

	// Services
	ledgerService := ledger.NewService(walletRepo, txRepo, txManager, log)
	treasuryService := treasury.NewService(walletRepo, ledgerService, cfg.Points.SystemSeed(), log)
	distributionService := distribution.NewService(eventRepo, walletRepo, userRepo, ledgerService, treasuryService, log)
	referralService := referral.NewService(txRepo, inviteRepo, userRepo, treasuryService, txManager, cfg.Points.ReferralRate(), log)
	eventService := events.NewService(eventRepo, walletRepo, userRepo, ledgerService, treasuryService, txManager, cfg.Points.EventCreationFeeAmount(), log)
	userService := users.NewService(userRepo, walletRepo, inviteRepo, treasuryService, txManager, cfg.Points.WelcomeBonusAmount(), log)

	// The system wallet must exist before any mint or charge
	if _, err := treasuryService.EnsureSystemWallet(context.Background()); err != nil {
		log.Fatal("Failed to ensure system wallet", "error", err)
	}

	// Workers
	distributionWorker := reward_distribution.NewWorker(distributionService, cfg.Schedulers, log)
	if err := distributionWorker.Start(); err != nil {
		log.Fatal("Failed to start reward distribution worker", "error", err)
	}

	referralWorker := referral_commission.NewWorker(referralService, cfg.Schedulers, log)
	if err := referralWorker.Start(); err != nil {
		log.Fatal("Failed to start referral commission worker", "error", err)
	}

	// HTTP layer
	router := routes.SetupRoutes(cfg, log, &routes.Handlers{
		Wallet:      handlers.NewWalletHandler(ledgerService, redisCache, log),
		Transaction: handlers.NewTransactionHandler(txRepo, walletRepo, log),
		User:        handlers.NewUserHandler(userService, log),
		Event:       handlers.NewEventHandler(eventService, log),
		Health:      handlers.NewHealthHandler(db, redisCache, version),
	})

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Database pool metrics
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	distributionWorker.Stop()
	referralWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exited")
}

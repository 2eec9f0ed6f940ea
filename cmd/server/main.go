// Package main is the entry point for the posledger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"posledger/internal/config"
	"posledger/internal/core/security"
	"posledger/internal/domain/activity"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/identity"
	"posledger/internal/domain/inventory"
	"posledger/internal/domain/ledger"
	"posledger/internal/domain/movement"
	"posledger/internal/domain/restore"
	"posledger/internal/domain/sales"
	"posledger/internal/infrastructure/cache"
	v1 "posledger/internal/infrastructure/http/v1"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/internal/infrastructure/storage/postgres/activity_repo"
	"posledger/internal/infrastructure/storage/postgres/catalog_repo"
	"posledger/internal/infrastructure/storage/postgres/document_repo"
	"posledger/internal/infrastructure/storage/postgres/register_repo"
	"posledger/pkg/logger"
	"posledger/pkg/numerator"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting posledger server")

	// --- Database ---
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalw("failed to ping database", "error", err)
	}
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	inventoryRepo := register_repo.NewInventoryRepo(txManager)
	ledgerRepo := register_repo.NewLedgerRepo(txManager)
	saleRepo := document_repo.NewSaleRepo(txManager)
	catalogRepo := catalog_repo.NewCatalogRepo(txManager)
	activityRepo, err := activity_repo.NewActivityRepo(txManager)
	if err != nil {
		log.Fatalw("failed to initialize activity repository", "error", err)
	}

	// --- Feature flags ---
	flags := security.NewInMemoryFlags()
	flags.SetFlag(security.FlagLedgerOwnsBalance, cfg.LedgerOwnsBalance)
	flags.SetFlag(security.FlagActivityCache, cfg.RedisAddr != "")

	// --- Activity list cache (optional) ---
	var listCache activity.ListCache
	if flags.IsEnabled(ctx, security.FlagActivityCache) {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warnw("redis unavailable, activity cache disabled", "error", err)
		} else {
			listCache = cache.NewActivityCache(redisClient, cfg.ActivityCacheTTL)
			log.Infow("activity cache enabled", "addr", cfg.RedisAddr)
		}
	}

	// --- Domain services ---
	store := inventory.NewStore(inventoryRepo)
	ledgerService := ledger.NewService(ledgerRepo)
	catalogService := catalog.NewService(catalogRepo)
	activityService := activity.NewService(activityRepo, listCache)

	recorder := activity.NewRecorder(activityService, 256)
	defer recorder.Close()

	numbers := numerator.New(pool)

	policy, err := security.NewBranchPolicy(cfg.BranchAccessRule)
	if err != nil {
		log.Fatalw("invalid branch access rule", "error", err)
	}
	scope := security.NewScope(policy)

	writer := ledger.WriterService
	if flags.IsEnabled(ctx, security.FlagLedgerOwnsBalance) {
		writer = ledger.WriterLedger
	}
	log.Infow("balance writer selected", "writer", writer)

	salesProcessor := sales.NewProcessor(
		txManager, saleRepo, catalogService, store, ledgerService,
		numbers, recorder, scope,
		sales.ProcessorConfig{Writer: writer},
	)
	movementProcessor := movement.NewProcessor(
		txManager, catalogService, store, ledgerService, activityService,
		numbers, scope,
		movement.ProcessorConfig{Writer: writer},
	)
	restoreEngine := restore.NewEngine(
		txManager, activityService, store, ledgerService, saleRepo, scope,
		restore.EngineConfig{Writer: writer},
	)

	// --- JWT ---
	jwtService := identity.NewJWTService(identity.DefaultJWTConfig(cfg.JWTSecret))

	// --- Idempotency ---
	var idempotencyStore *postgres.IdempotencyStore
	if cfg.IdempotencyEnabled {
		idempotencyStore = postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL)
		log.Infow("idempotency enabled", "ttl", cfg.IdempotencyTTL)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:             pool,
		Logger:           log,
		JWTValidator:     jwtService,
		IdempotencyStore: idempotencyStore,
		Sales:            salesProcessor,
		Movements:        movementProcessor,
		Restore:          restoreEngine,
		Activity:         activityService,
		Inventory:        store,
		Ledger:           ledgerService,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

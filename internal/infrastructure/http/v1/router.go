// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	appctx "posledger/internal/core/context"
	"posledger/internal/domain/activity"
	"posledger/internal/domain/inventory"
	"posledger/internal/domain/ledger"
	"posledger/internal/domain/movement"
	"posledger/internal/domain/restore"
	"posledger/internal/domain/sales"
	"posledger/internal/infrastructure/http/v1/handlers"
	"posledger/internal/infrastructure/http/v1/middleware"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/pkg/logger"
)

// RouterConfig holds everything the HTTP layer depends on.
type RouterConfig struct {
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// IdempotencyStore enables idempotent replay of mutating requests when set
	IdempotencyStore *postgres.IdempotencyStore

	Sales     *sales.Processor
	Movements *movement.Processor
	Restore   *restore.Engine
	Activity  *activity.Service
	Inventory *inventory.Store
	Ledger    *ledger.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.IdempotencyStore != nil {
		v1.Use(middleware.Idempotency(cfg.IdempotencyStore))
	}

	saleHandler := handlers.NewSaleHandler(base, cfg.Sales)
	saleHandler.RegisterRoutes(v1.Group("/sales"))

	movementHandler := handlers.NewMovementHandler(base, cfg.Movements, cfg.Ledger)
	stockMovements := v1.Group("/stock-movements")
	{
		stockMovements.POST("", movementHandler.Create)
		stockMovements.GET("", movementHandler.History)
	}
	v1.Group("/stock-transfers").POST("", movementHandler.Transfer)

	activityHandler := handlers.NewActivityHandler(base, cfg.Activity)
	activityHandler.RegisterRoutes(v1.Group("/activities"))

	// Restores are owner/manager operations; the engine enforces the same
	// rule again so direct callers cannot slip past the route guard.
	restoreHandler := handlers.NewRestoreHandler(base, cfg.Restore)
	restoreGroup := v1.Group("/restore")
	restoreGroup.Use(middleware.RequireRole(appctx.RoleOwner, appctx.RoleManager))
	restoreHandler.RegisterRoutes(restoreGroup)

	inventoryHandler := handlers.NewInventoryHandler(base, cfg.Inventory)
	inventoryHandler.RegisterRoutes(v1.Group("/inventory"))

	return router
}

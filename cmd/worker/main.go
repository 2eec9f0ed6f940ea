// Package main is the entry point for the posledger background worker.
// It periodically reconciles the movement ledger against stored balances
// and reports drift. Drift is never auto-corrected; it signals a bug or
// manual database intervention and needs a human decision.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"posledger/internal/config"
	"posledger/internal/core/entity"
	"posledger/internal/domain/inventory"
	"posledger/internal/domain/ledger"
	"posledger/internal/infrastructure/storage/postgres"
	"posledger/internal/infrastructure/storage/postgres/register_repo"
	"posledger/pkg/logger"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting posledger worker")

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	reconciler := NewReconciler(
		register_repo.NewInventoryRepo(txManager),
		register_repo.NewLedgerRepo(txManager),
		cfg.ReconcileInterval,
		log,
	)

	var idempotencyCleanup *postgres.IdempotencyStore
	if cfg.IdempotencyEnabled {
		idempotencyCleanup = postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(ctx)
	}()

	if idempotencyCleanup != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runIdempotencyCleanup(ctx, idempotencyCleanup, log)
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Reconciler compares the signed ledger sum per triple against the stored
// on-hand quantity.
type Reconciler struct {
	balances inventory.Repository
	ledger   ledger.Repository
	interval time.Duration
	log      *logger.Logger
}

func NewReconciler(balances inventory.Repository, ledgerRepo ledger.Repository, interval time.Duration, log *logger.Logger) *Reconciler {
	return &Reconciler{
		balances: balances,
		ledger:   ledgerRepo,
		interval: interval,
		log:      log.WithComponent("reconciler"),
	}
}

// Run executes reconciliation passes until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// First pass right away, then on the interval.
	r.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context) {
	start := time.Now()

	triples, err := r.balances.ListTriples(ctx)
	if err != nil {
		r.log.Errorw("failed to list inventory triples", "error", err)
		return
	}

	var checked, drifted int
	for _, triple := range triples {
		if ctx.Err() != nil {
			return
		}
		if r.checkTriple(ctx, triple) {
			drifted++
		}
		checked++
	}

	r.log.Infow("reconciliation pass complete",
		"checked", checked,
		"drifted", drifted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// checkTriple reports true when the ledger and the balance disagree.
func (r *Reconciler) checkTriple(ctx context.Context, triple entity.Triple) bool {
	net, err := r.ledger.SignedSum(ctx, triple)
	if err != nil {
		r.log.Errorw("failed to compute ledger sum", "triple", triple.String(), "error", err)
		return false
	}

	row, found, err := r.balances.Get(ctx, triple)
	if err != nil {
		r.log.Errorw("failed to read balance", "triple", triple.String(), "error", err)
		return false
	}

	stored := int64(0)
	if found {
		stored = row.Quantity.Int64()
	}

	if stored != net.Int64() {
		r.log.Warnw("ledger drift detected",
			"triple", triple.String(),
			"stored_quantity", stored,
			"ledger_sum", net.Int64(),
			"delta", stored-net.Int64(),
		)
		return true
	}
	return false
}

func runIdempotencyCleanup(ctx context.Context, store *postgres.IdempotencyStore, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupExpired(ctx)
			if err != nil {
				log.Errorw("idempotency cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Infow("expired idempotency keys removed", "count", removed)
			}
		}
	}
}

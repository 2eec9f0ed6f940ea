// Package inventory provides the quantity store: current on-hand stock per triple.
package inventory

import (
	"context"
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// Repository defines row-level operations for the quantity store.
// All mutations run inside the caller's transaction.
type Repository interface {
	// Get returns the row for a triple. found is false when no row exists.
	Get(ctx context.Context, triple entity.Triple) (row *entity.InventoryRow, found bool, err error)

	// GetForUpdate returns the row with a pessimistic lock so the
	// check-then-update in Adjust is a single atomic step.
	GetForUpdate(ctx context.Context, triple entity.Triple) (row *entity.InventoryRow, found bool, err error)

	// Create inserts a new row for a triple that has none yet.
	Create(ctx context.Context, row *entity.InventoryRow) error

	// UpdateQuantity writes the new quantity for a locked row.
	// lastRestocked is non-nil when the adjustment was an increase.
	UpdateQuantity(ctx context.Context, triple entity.Triple, quantity types.Quantity, lastRestocked *time.Time) error

	// UpdateLevels applies a min/max stock level patch.
	UpdateLevels(ctx context.Context, triple entity.Triple, patch LevelsPatch) error

	// ListByBranch returns all rows for a branch.
	ListByBranch(ctx context.Context, branchID id.ID, filter ListFilter) ([]entity.InventoryRow, error)

	// ListTriples returns every known triple (reconciliation worker).
	ListTriples(ctx context.Context) ([]entity.Triple, error)
}

// LevelsPatch carries optional min/max stock level updates.
// Explicit optional fields, applied via fixed branches - never a dynamic
// column list.
type LevelsPatch struct {
	MinStockLevel *types.Quantity
	MaxStockLevel *types.Quantity
}

// IsEmpty reports whether the patch changes nothing.
func (p LevelsPatch) IsEmpty() bool {
	return p.MinStockLevel == nil && p.MaxStockLevel == nil
}

// ListFilter for branch inventory queries.
type ListFilter struct {
	ProductID   *id.ID
	ExcludeZero bool
	Limit       int
	Offset      int
}

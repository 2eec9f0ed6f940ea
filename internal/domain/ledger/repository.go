// Package ledger provides the append-only stock movement ledger.
package ledger

import (
	"context"
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// BalanceWriter names which component owns InventoryRow updates for a stock
// operation. Exactly one writer per call: either the processor adjusts the
// quantity store itself and the ledger append is a pure insert, or the
// ledger recompute owns the update and the processor skips its own adjust.
type BalanceWriter string

const (
	// WriterService: the processor calls the quantity store, recompute is
	// suppressed.
	WriterService BalanceWriter = "service"
	// WriterLedger: the ledger append recomputes the balance, the
	// processor does not touch the quantity store.
	WriterLedger BalanceWriter = "ledger"
)

// AppendOptions controls the side effects of an append.
type AppendOptions struct {
	// RecomputeBalance makes the store recompute the on-hand quantity for
	// the affected triple from the full ledger after the append. Enabled
	// when the ledger owns the balance instead of the quantity store.
	RecomputeBalance bool
}

// Repository defines the append-only movement log. There are no update or
// delete operations: corrections are new movements.
type Repository interface {
	Append(ctx context.Context, rec *entity.MovementRecord, opts AppendOptions) error
	AppendBatch(ctx context.Context, recs []*entity.MovementRecord, opts AppendOptions) error

	// History returns movements matching the filter, newest first.
	History(ctx context.Context, filter HistoryFilter) ([]entity.MovementRecord, error)

	// SignedSum returns the net quantity for a triple: sum of "in"
	// movements minus sum of "out" movements.
	SignedSum(ctx context.Context, triple entity.Triple) (types.Quantity, error)
}

// HistoryFilter narrows a ledger history query.
type HistoryFilter struct {
	ProductID     *id.ID
	VariationID   *id.ID
	BranchID      *id.ID
	MovementType  *entity.MovementType
	ReferenceType *entity.ReferenceType
	ReferenceID   *id.ID
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}

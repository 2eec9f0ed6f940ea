package inventory

import (
	"context"
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/pkg/logger"
)

// Store is the quantity store service. It owns the non-negative invariant:
// no adjustment may drive a quantity below zero.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// AdjustResult reports the outcome of a single quantity adjustment.
type AdjustResult struct {
	Triple       entity.Triple
	Previous     types.Quantity
	Current      types.Quantity
	Created      bool
	BelowMinimum bool
}

// Adjust applies a signed delta to the on-hand quantity of a triple.
//
// The row is locked for the duration of the check-then-update. When no row
// exists and the delta is non-negative, a row is created; a negative delta
// against a missing row is insufficient stock with available 0. A decrease
// past zero fails with insufficient stock and leaves the row untouched.
// Increases refresh last_restocked.
func (s *Store) Adjust(ctx context.Context, triple entity.Triple, delta types.Quantity) (*AdjustResult, error) {
	row, found, err := s.repo.GetForUpdate(ctx, triple)
	if err != nil {
		return nil, err
	}

	if !found {
		if delta.IsNegative() {
			return nil, apperror.NewInsufficientStock(triple.ProductID.String(), delta.Abs().Int64(), 0)
		}
		now := time.Now().UTC()
		row = &entity.InventoryRow{
			ID:          id.New(),
			ProductID:   triple.ProductID,
			VariationID: triple.VariationID,
			BranchID:    triple.BranchID,
			Quantity:    delta,
			UpdatedAt:   now,
		}
		if delta.IsPositive() {
			row.LastRestocked = &now
		}
		if err := s.repo.Create(ctx, row); err != nil {
			return nil, err
		}
		return &AdjustResult{Triple: triple, Previous: 0, Current: delta, Created: true}, nil
	}

	next := row.Quantity + delta
	if next.IsNegative() {
		return nil, apperror.NewInsufficientStock(triple.ProductID.String(), delta.Abs().Int64(), row.Quantity.Int64())
	}

	var restocked *time.Time
	if delta.IsPositive() {
		now := time.Now().UTC()
		restocked = &now
	}
	if err := s.repo.UpdateQuantity(ctx, triple, next, restocked); err != nil {
		return nil, err
	}

	res := &AdjustResult{Triple: triple, Previous: row.Quantity, Current: next}
	if row.MinStockLevel != nil && next < *row.MinStockLevel {
		res.BelowMinimum = true
		logger.Warn(ctx, "stock below minimum level",
			"product_id", triple.ProductID.String(),
			"branch_id", triple.BranchID.String(),
			"quantity", next.Int64(),
			"min_stock_level", row.MinStockLevel.Int64(),
		)
	}
	return res, nil
}

// Get returns the current row for a triple.
func (s *Store) Get(ctx context.Context, triple entity.Triple) (*entity.InventoryRow, error) {
	row, found, err := s.repo.Get(ctx, triple)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.NewNotFound("inventory", triple.String())
	}
	return row, nil
}

// Quantity returns the on-hand quantity for a triple, zero when no row exists.
func (s *Store) Quantity(ctx context.Context, triple entity.Triple) (types.Quantity, error) {
	row, found, err := s.repo.Get(ctx, triple)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return row.Quantity, nil
}

// ListByBranch returns inventory rows for a branch.
func (s *Store) ListByBranch(ctx context.Context, branchID id.ID, filter ListFilter) ([]entity.InventoryRow, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListByBranch(ctx, branchID, filter)
}

// SetLevels applies a min/max stock level patch to an existing row.
func (s *Store) SetLevels(ctx context.Context, triple entity.Triple, patch LevelsPatch) error {
	if patch.IsEmpty() {
		return apperror.NewValidation("no fields to update")
	}
	if patch.MinStockLevel != nil && patch.MinStockLevel.IsNegative() {
		return apperror.NewValidation("min_stock_level must not be negative")
	}
	if patch.MaxStockLevel != nil && patch.MaxStockLevel.IsNegative() {
		return apperror.NewValidation("max_stock_level must not be negative")
	}
	_, found, err := s.repo.Get(ctx, triple)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NewNotFound("inventory", triple.String())
	}
	return s.repo.UpdateLevels(ctx, triple, patch)
}

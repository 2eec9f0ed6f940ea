// Package register_repo provides PostgreSQL implementations for the
// quantity store and the movement ledger.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/inventory"
	"posledger/internal/infrastructure/storage/postgres"
)

const (
	balancesTable  = "inventory_balances"
	movementsTable = "stock_movements"
)

var balanceColumns = []string{
	"id", "product_id", "variation_id", "branch_id",
	"quantity", "min_stock_level", "max_stock_level",
	"last_restocked", "updated_at",
}

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewInventoryRepo(txm *postgres.TxManager) *InventoryRepo {
	return &InventoryRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *InventoryRepo) Get(ctx context.Context, triple entity.Triple) (*entity.InventoryRow, bool, error) {
	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(tripleEq(triple)).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build query: %w", err)
	}

	var row entity.InventoryRow
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get balance: %w", err)
	}
	return &row, true, nil
}

// GetForUpdate locks the row so check-then-update is atomic under
// concurrent adjustments of the same triple.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, triple entity.Triple) (*entity.InventoryRow, bool, error) {
	sql := `
		SELECT id, product_id, variation_id, branch_id,
		       quantity, min_stock_level, max_stock_level,
		       last_restocked, updated_at
		FROM inventory_balances
		WHERE product_id = $1
		  AND variation_id IS NOT DISTINCT FROM $2
		  AND branch_id = $3
		FOR UPDATE
	`

	var row entity.InventoryRow
	querier := r.txm.GetQuerier(ctx)
	err := pgxscan.Get(ctx, querier, &row, sql, triple.ProductID, triple.VariationID, triple.BranchID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get balance for update: %w", err)
	}
	return &row, true, nil
}

func (r *InventoryRepo) Create(ctx context.Context, row *entity.InventoryRow) error {
	q := r.builder.Insert(balancesTable).
		Columns(balanceColumns...).
		Values(
			row.ID, row.ProductID, row.VariationID, row.BranchID,
			row.Quantity, row.MinStockLevel, row.MaxStockLevel,
			row.LastRestocked, row.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert balance: %w", err)
	}
	return nil
}

func (r *InventoryRepo) UpdateQuantity(ctx context.Context, triple entity.Triple, quantity types.Quantity, lastRestocked *time.Time) error {
	q := r.builder.Update(balancesTable).
		Set("quantity", quantity).
		Set("updated_at", time.Now().UTC()).
		Where(tripleEq(triple))
	if lastRestocked != nil {
		q = q.Set("last_restocked", *lastRestocked)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}
	return nil
}

func (r *InventoryRepo) UpdateLevels(ctx context.Context, triple entity.Triple, patch inventory.LevelsPatch) error {
	q := r.builder.Update(balancesTable).
		Set("updated_at", time.Now().UTC()).
		Where(tripleEq(triple))
	if patch.MinStockLevel != nil {
		q = q.Set("min_stock_level", *patch.MinStockLevel)
	}
	if patch.MaxStockLevel != nil {
		q = q.Set("max_stock_level", *patch.MaxStockLevel)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update levels: %w", err)
	}
	return nil
}

func (r *InventoryRepo) ListByBranch(ctx context.Context, branchID id.ID, filter inventory.ListFilter) ([]entity.InventoryRow, error) {
	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"branch_id": branchID})

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}

	q = q.OrderBy("product_id", "variation_id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []entity.InventoryRow
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	return rows, nil
}

func (r *InventoryRepo) ListTriples(ctx context.Context) ([]entity.Triple, error) {
	sql := `SELECT DISTINCT product_id, variation_id, branch_id FROM inventory_balances`

	var triples []entity.Triple
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &triples, sql); err != nil {
		return nil, fmt.Errorf("select triples: %w", err)
	}
	return triples, nil
}

// tripleEq builds the WHERE clause for a triple. A nil variation matches
// the NULL column.
func tripleEq(t entity.Triple) squirrel.Sqlizer {
	eq := squirrel.Eq{
		"product_id": t.ProductID,
		"branch_id":  t.BranchID,
	}
	// squirrel renders Eq{nil} as IS NULL
	if t.VariationID != nil {
		eq["variation_id"] = *t.VariationID
	} else {
		eq["variation_id"] = nil
	}
	return eq
}

var _ inventory.Repository = (*InventoryRepo)(nil)

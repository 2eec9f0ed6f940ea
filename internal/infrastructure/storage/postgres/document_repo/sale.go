// Package document_repo provides PostgreSQL implementations for business
// documents.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain/sales"
	"posledger/internal/infrastructure/storage/postgres"
)

const (
	salesTable     = "doc_sales"
	saleLinesTable = "doc_sale_lines"
)

var saleColumns = []string{
	"id", "number", "branch_id", "cashier_id", "customer_id",
	"payment_method", "subtotal", "discount", "total", "voided", "created_at",
}

var saleLineColumns = []string{
	"id", "sale_id", "product_id", "variation_id",
	"quantity", "unit_price", "line_total",
}

// SaleRepo implements sales.Repository.
type SaleRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *SaleRepo) CreateSale(ctx context.Context, sale *entity.SaleTransaction) error {
	q := r.builder.Insert(salesTable).
		Columns(saleColumns...).
		Values(
			sale.ID, sale.Number, sale.BranchID, sale.CashierID, sale.CustomerID,
			sale.PaymentMethod, sale.Subtotal, sale.Discount, sale.Total,
			sale.Voided, sale.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (r *SaleRepo) SaveLines(ctx context.Context, lines []*entity.SaleLine) error {
	if len(lines) == 0 {
		return nil
	}

	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, []any{
				l.ID, l.SaleID, l.ProductID, l.VariationID,
				l.Quantity, l.UnitPrice, l.LineTotal,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, saleLinesTable, saleLineColumns, rows); err != nil {
			return fmt.Errorf("copy sale lines: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(saleLinesTable).Columns(saleLineColumns...)
	for _, l := range lines {
		q = q.Values(
			l.ID, l.SaleID, l.ProductID, l.VariationID,
			l.Quantity, l.UnitPrice, l.LineTotal,
		)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sale lines: %w", err)
	}
	return nil
}

func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*entity.SaleTransaction, bool, error) {
	q := r.builder.Select(saleColumns...).
		From(salesTable).
		Where(squirrel.Eq{"id": saleID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build query: %w", err)
	}

	var sale entity.SaleTransaction
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &sale, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get sale: %w", err)
	}
	return &sale, true, nil
}

func (r *SaleRepo) GetLines(ctx context.Context, saleID id.ID) ([]entity.SaleLine, error) {
	q := r.builder.Select(saleLineColumns...).
		From(saleLinesTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []entity.SaleLine
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select sale lines: %w", err)
	}
	return lines, nil
}

func (r *SaleRepo) MarkVoided(ctx context.Context, saleID id.ID) error {
	q := r.builder.Update(salesTable).
		Set("voided", true).
		Where(squirrel.Eq{"id": saleID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("mark sale voided: %w", err)
	}
	return nil
}

var _ sales.Repository = (*SaleRepo)(nil)

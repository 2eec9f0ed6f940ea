// Package catalog_repo provides PostgreSQL implementations for catalog
// lookups.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain/catalog"
	"posledger/internal/infrastructure/storage/postgres"
)

const (
	productsTable   = "cat_products"
	variationsTable = "cat_variations"
	branchesTable   = "cat_branches"
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewCatalogRepo(txm *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *CatalogRepo) GetProduct(ctx context.Context, productID id.ID) (*entity.Product, bool, error) {
	q := r.builder.Select("id", "name", "sku", "price", "active", "created_at", "updated_at").
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Limit(1)

	var p entity.Product
	found, err := r.getOne(ctx, q, &p, "get product")
	if err != nil || !found {
		return nil, false, err
	}
	return &p, true, nil
}

func (r *CatalogRepo) GetVariation(ctx context.Context, variationID id.ID) (*entity.Variation, bool, error) {
	q := r.builder.Select("id", "product_id", "name", "sku", "price", "created_at").
		From(variationsTable).
		Where(squirrel.Eq{"id": variationID}).
		Limit(1)

	var v entity.Variation
	found, err := r.getOne(ctx, q, &v, "get variation")
	if err != nil || !found {
		return nil, false, err
	}
	return &v, true, nil
}

// FirstVariation returns the earliest-created variation so an omitted
// variation id always resolves to the same target.
func (r *CatalogRepo) FirstVariation(ctx context.Context, productID id.ID) (*entity.Variation, bool, error) {
	q := r.builder.Select("id", "product_id", "name", "sku", "price", "created_at").
		From(variationsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at", "id").
		Limit(1)

	var v entity.Variation
	found, err := r.getOne(ctx, q, &v, "first variation")
	if err != nil || !found {
		return nil, false, err
	}
	return &v, true, nil
}

func (r *CatalogRepo) GetBranch(ctx context.Context, branchID id.ID) (*entity.Branch, bool, error) {
	q := r.builder.Select("id", "name", "address", "active", "created_at").
		From(branchesTable).
		Where(squirrel.Eq{"id": branchID}).
		Limit(1)

	var b entity.Branch
	found, err := r.getOne(ctx, q, &b, "get branch")
	if err != nil || !found {
		return nil, false, err
	}
	return &b, true, nil
}

func (r *CatalogRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, dest any, op string) (bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, dest, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

var _ catalog.Repository = (*CatalogRepo)(nil)

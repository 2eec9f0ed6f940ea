// Package sales processes multi-line sale transactions.
package sales

import (
	"context"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
)

type Repository interface {
	CreateSale(ctx context.Context, sale *entity.SaleTransaction) error
	SaveLines(ctx context.Context, lines []*entity.SaleLine) error
	GetByID(ctx context.Context, saleID id.ID) (*entity.SaleTransaction, bool, error)
	GetLines(ctx context.Context, saleID id.ID) ([]entity.SaleLine, error)
	MarkVoided(ctx context.Context, saleID id.ID) error
}

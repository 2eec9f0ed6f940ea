package ledger

import (
	"context"
	"fmt"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/types"
)

// Service validates and appends movement records.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validate(rec *entity.MovementRecord) error {
	if rec.MovementType != entity.MovementIn && rec.MovementType != entity.MovementOut {
		return apperror.NewValidation(fmt.Sprintf("unknown movement type %q", rec.MovementType))
	}
	if !rec.Quantity.IsPositive() {
		return apperror.NewValidation("movement quantity must be positive")
	}
	switch rec.ReferenceType {
	case entity.ReferenceSale, entity.ReferenceManual, entity.ReferenceTransfer, entity.ReferenceRestore:
	default:
		return apperror.NewValidation(fmt.Sprintf("unknown reference type %q", rec.ReferenceType))
	}
	return nil
}

// Append records one movement.
func (s *Service) Append(ctx context.Context, rec *entity.MovementRecord, opts AppendOptions) error {
	if err := validate(rec); err != nil {
		return err
	}
	return s.repo.Append(ctx, rec, opts)
}

// AppendBatch records several movements in one round trip.
func (s *Service) AppendBatch(ctx context.Context, recs []*entity.MovementRecord, opts AppendOptions) error {
	for _, rec := range recs {
		if err := validate(rec); err != nil {
			return err
		}
	}
	if len(recs) == 0 {
		return nil
	}
	return s.repo.AppendBatch(ctx, recs, opts)
}

// History returns movements matching the filter, newest first.
func (s *Service) History(ctx context.Context, filter HistoryFilter) ([]entity.MovementRecord, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.History(ctx, filter)
}

// NetQuantity returns the ledger-derived balance for a triple.
func (s *Service) NetQuantity(ctx context.Context, triple entity.Triple) (types.Quantity, error) {
	return s.repo.SignedSum(ctx, triple)
}

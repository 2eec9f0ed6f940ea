// Package catalog resolves products, variations and branches.
package catalog

import (
	"context"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
)

type Repository interface {
	GetProduct(ctx context.Context, productID id.ID) (*entity.Product, bool, error)
	GetVariation(ctx context.Context, variationID id.ID) (*entity.Variation, bool, error)
	// FirstVariation returns the earliest-created variation of a product,
	// found=false when the product has none.
	FirstVariation(ctx context.Context, productID id.ID) (*entity.Variation, bool, error)
	GetBranch(ctx context.Context, branchID id.ID) (*entity.Branch, bool, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetProduct returns an active product or NotFound.
func (s *Service) GetProduct(ctx context.Context, productID id.ID) (*entity.Product, error) {
	p, found, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !found || !p.Active {
		return nil, apperror.NewNotFound("product", productID)
	}
	return p, nil
}

// ResolveVariation normalizes the variation of a stock operation. A nil
// variation id on a product that has variations resolves to the
// earliest-created one; an explicit variation id must belong to the product.
func (s *Service) ResolveVariation(ctx context.Context, productID id.ID, variationID *id.ID) (*id.ID, error) {
	if variationID != nil {
		v, found, err := s.repo.GetVariation(ctx, *variationID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, apperror.NewNotFound("variation", *variationID)
		}
		if v.ProductID != productID {
			return nil, apperror.NewValidation("variation does not belong to product")
		}
		vid := v.ID
		return &vid, nil
	}
	v, found, err := s.repo.FirstVariation(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	vid := v.ID
	return &vid, nil
}

// RequireBranch returns an active branch or NotFound.
func (s *Service) RequireBranch(ctx context.Context, branchID id.ID) (*entity.Branch, error) {
	b, found, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if !found || !b.Active {
		return nil, apperror.NewNotFound("branch", branchID)
	}
	return b, nil
}

package dto

import (
	"time"

	"posledger/internal/core/entity"
)

// BalanceResponse is one on-hand quantity row.
type BalanceResponse struct {
	ProductID     string     `json:"productId"`
	VariationID   *string    `json:"variationId,omitempty"`
	BranchID      string     `json:"branchId"`
	Quantity      int64      `json:"quantity"`
	MinStockLevel *int64     `json:"minStockLevel,omitempty"`
	MaxStockLevel *int64     `json:"maxStockLevel,omitempty"`
	BelowMinimum  bool       `json:"belowMinimum"`
	LastRestocked *time.Time `json:"lastRestocked,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// FromBalance creates BalanceResponse from the entity.
func FromBalance(row *entity.InventoryRow) BalanceResponse {
	resp := BalanceResponse{
		ProductID:     row.ProductID.String(),
		BranchID:      row.BranchID.String(),
		Quantity:      row.Quantity.Int64(),
		BelowMinimum:  row.BelowMinimum(),
		LastRestocked: row.LastRestocked,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.VariationID != nil {
		variationID := row.VariationID.String()
		resp.VariationID = &variationID
	}
	if row.MinStockLevel != nil {
		minLevel := row.MinStockLevel.Int64()
		resp.MinStockLevel = &minLevel
	}
	if row.MaxStockLevel != nil {
		maxLevel := row.MaxStockLevel.Int64()
		resp.MaxStockLevel = &maxLevel
	}
	return resp
}

// SetLevelsRequest updates min/max stock levels for one row.
type SetLevelsRequest struct {
	MinStockLevel *int64 `json:"minStockLevel"`
	MaxStockLevel *int64 `json:"maxStockLevel"`
}

package activity

import (
	"encoding/json"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// Delta payloads are the canonical record of what an activity changed.
// They are written once and never mutated; the restore engine inverts them.

// SellItem is one line of a sell delta.
type SellItem struct {
	ProductID   id.ID            `json:"product_id"`
	VariationID *id.ID           `json:"variation_id,omitempty"`
	Quantity    types.Quantity   `json:"quantity"`
	UnitPrice   types.MinorUnits `json:"unit_price"`
}

// SellDelta captures a committed sale.
type SellDelta struct {
	SaleID      id.ID            `json:"sale_id"`
	Number      string           `json:"number"`
	Items       []SellItem       `json:"items"`
	TotalAmount types.MinorUnits `json:"total_amount"`
	Discount    types.MinorUnits `json:"discount"`
}

// StockMoveDelta captures a manual stock_in or stock_out movement.
type StockMoveDelta struct {
	MovementID  id.ID          `json:"movement_id"`
	ProductID   id.ID          `json:"product_id"`
	VariationID *id.ID         `json:"variation_id,omitempty"`
	Quantity    types.Quantity `json:"quantity"`
	Reason      string         `json:"reason,omitempty"`
}

// TransferDelta captures a stock transfer between branches.
type TransferDelta struct {
	ProductID    id.ID          `json:"product_id"`
	VariationID  *id.ID         `json:"variation_id,omitempty"`
	Quantity     types.Quantity `json:"quantity"`
	FromBranchID id.ID          `json:"from_branch_id"`
	ToBranchID   id.ID          `json:"to_branch_id"`
}

// RestoreDelta describes a reversal of an earlier activity.
type RestoreDelta struct {
	RestoredActivityID id.ID               `json:"restored_activity_id"`
	RestoredType       entity.ActivityType `json:"restored_type"`
	Reason             string              `json:"reason,omitempty"`
	Reversal           json.RawMessage     `json:"reversal"`
}

// MarshalDelta encodes a typed delta payload.
func MarshalDelta(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return b, nil
}

// UnmarshalDelta decodes a delta payload into the given type.
func UnmarshalDelta[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, apperror.NewValidation("malformed activity delta payload")
	}
	return &v, nil
}

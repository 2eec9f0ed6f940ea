// Package entity provides core domain entities shared across components.
package entity

import (
	"fmt"
	"time"

	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

// MovementType defines the direction of a ledger movement.
type MovementType string

const (
	// MovementIn increases on-hand quantity
	MovementIn MovementType = "in"
	// MovementOut decreases on-hand quantity
	MovementOut MovementType = "out"
)

// ReferenceType names the business operation that produced a movement.
type ReferenceType string

const (
	ReferenceSale     ReferenceType = "sale"
	ReferenceManual   ReferenceType = "manual"
	ReferenceTransfer ReferenceType = "transfer"
	ReferenceRestore  ReferenceType = "restore"
)

// Triple is the (product, variation?, branch) key identifying one InventoryRow.
// VariationID is nil for products without variations.
type Triple struct {
	ProductID   id.ID  `db:"product_id" json:"productId"`
	VariationID *id.ID `db:"variation_id" json:"variationId,omitempty"`
	BranchID    id.ID  `db:"branch_id" json:"branchId"`
}

// String renders the triple for error messages and logs.
func (t Triple) String() string {
	if t.VariationID != nil {
		return fmt.Sprintf("product=%s variation=%s branch=%s", t.ProductID, *t.VariationID, t.BranchID)
	}
	return fmt.Sprintf("product=%s branch=%s", t.ProductID, t.BranchID)
}

// InventoryRow is the current on-hand quantity for one triple.
// The single source of truth for "how much is on hand now"; the ledger and
// activity log only explain how it got there.
type InventoryRow struct {
	ID          id.ID  `db:"id" json:"id"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	VariationID *id.ID `db:"variation_id" json:"variationId,omitempty"`
	BranchID    id.ID  `db:"branch_id" json:"branchId"`

	// Quantity is never negative. Enforced atomically on every adjustment.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	MinStockLevel *types.Quantity `db:"min_stock_level" json:"minStockLevel,omitempty"`
	MaxStockLevel *types.Quantity `db:"max_stock_level" json:"maxStockLevel,omitempty"`

	// LastRestocked is set whenever a positive delta lands on the row.
	LastRestocked *time.Time `db:"last_restocked" json:"lastRestocked,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Triple returns the row's identifying key.
func (r *InventoryRow) Triple() Triple {
	return Triple{ProductID: r.ProductID, VariationID: r.VariationID, BranchID: r.BranchID}
}

// BelowMinimum reports whether the row dropped under its configured minimum.
func (r *InventoryRow) BelowMinimum() bool {
	return r.MinStockLevel != nil && r.Quantity < *r.MinStockLevel
}

// MovementRecord is one signed quantity change in the Movement Ledger.
// Immutable once written; records are never updated or deleted.
type MovementRecord struct {
	ID          id.ID  `db:"id" json:"id"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	VariationID *id.ID `db:"variation_id" json:"variationId,omitempty"`
	BranchID    id.ID  `db:"branch_id" json:"branchId"`

	MovementType MovementType   `db:"movement_type" json:"movementType"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`

	Reason  string `db:"reason" json:"reason"`
	ActorID id.ID  `db:"actor_id" json:"actorId"`

	ReferenceType ReferenceType `db:"reference_type" json:"referenceType"`
	// ReferenceID points at the sale / activity that produced the movement.
	ReferenceID *id.ID `db:"reference_id" json:"referenceId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovementRecord creates a movement with a generated ID and timestamp.
func NewMovementRecord(
	triple Triple,
	movementType MovementType,
	quantity types.Quantity,
	reason string,
	actorID id.ID,
	refType ReferenceType,
	refID *id.ID,
) MovementRecord {
	return MovementRecord{
		ID:            id.New(),
		ProductID:     triple.ProductID,
		VariationID:   triple.VariationID,
		BranchID:      triple.BranchID,
		MovementType:  movementType,
		Quantity:      quantity,
		Reason:        reason,
		ActorID:       actorID,
		ReferenceType: refType,
		ReferenceID:   refID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Triple returns the movement's inventory key.
func (m *MovementRecord) Triple() Triple {
	return Triple{ProductID: m.ProductID, VariationID: m.VariationID, BranchID: m.BranchID}
}

// SignedQuantity returns quantity with sign based on movement type.
// In = positive, out = negative.
func (m *MovementRecord) SignedQuantity() types.Quantity {
	if m.MovementType == MovementOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

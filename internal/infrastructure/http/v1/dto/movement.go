package dto

import (
	"time"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/movement"
)

// CreateMovementRequest for a manual stock-in or stock-out.
type CreateMovementRequest struct {
	ProductID   string  `json:"productId" binding:"required"`
	VariationID *string `json:"variationId"`
	BranchID    string  `json:"branchId" binding:"required"`
	Type        string  `json:"type" binding:"required"`
	Quantity    int64   `json:"quantity" binding:"required,min=1"`
	Reason      string  `json:"reason" binding:"required"`
}

// ToRequest converts the DTO into a processor request.
func (r CreateMovementRequest) ToRequest() (movement.ApplyRequest, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return movement.ApplyRequest{}, apperror.NewValidation("invalid productId format")
	}
	branchID, err := id.Parse(r.BranchID)
	if err != nil {
		return movement.ApplyRequest{}, apperror.NewValidation("invalid branchId format")
	}

	req := movement.ApplyRequest{
		ProductID: productID,
		BranchID:  branchID,
		Type:      entity.MovementType(r.Type),
		Quantity:  types.Quantity(r.Quantity),
		Reason:    r.Reason,
	}
	if r.VariationID != nil && *r.VariationID != "" {
		variationID, err := id.Parse(*r.VariationID)
		if err != nil {
			return movement.ApplyRequest{}, apperror.NewValidation("invalid variationId format")
		}
		req.VariationID = &variationID
	}
	return req, nil
}

// CreateTransferRequest for moving stock between branches.
type CreateTransferRequest struct {
	ProductID    string  `json:"productId" binding:"required"`
	VariationID  *string `json:"variationId"`
	FromBranchID string  `json:"fromBranchId" binding:"required"`
	ToBranchID   string  `json:"toBranchId" binding:"required"`
	Quantity     int64   `json:"quantity" binding:"required,min=1"`
	Reason       string  `json:"reason"`
}

// ToRequest converts the DTO into a processor request.
func (r CreateTransferRequest) ToRequest() (movement.TransferRequest, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return movement.TransferRequest{}, apperror.NewValidation("invalid productId format")
	}
	fromID, err := id.Parse(r.FromBranchID)
	if err != nil {
		return movement.TransferRequest{}, apperror.NewValidation("invalid fromBranchId format")
	}
	toID, err := id.Parse(r.ToBranchID)
	if err != nil {
		return movement.TransferRequest{}, apperror.NewValidation("invalid toBranchId format")
	}

	req := movement.TransferRequest{
		ProductID:    productID,
		FromBranchID: fromID,
		ToBranchID:   toID,
		Quantity:     types.Quantity(r.Quantity),
		Reason:       r.Reason,
	}
	if r.VariationID != nil && *r.VariationID != "" {
		variationID, err := id.Parse(*r.VariationID)
		if err != nil {
			return movement.TransferRequest{}, apperror.NewValidation("invalid variationId format")
		}
		req.VariationID = &variationID
	}
	return req, nil
}

// TransferResponse is the reference number assigned to a transfer.
type TransferResponse struct {
	Number string `json:"number"`
}

// MovementResponse is one ledger entry.
type MovementResponse struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId"`
	VariationID   *string   `json:"variationId,omitempty"`
	BranchID      string    `json:"branchId"`
	Type          string    `json:"type"`
	Quantity      int64     `json:"quantity"`
	Reason        string    `json:"reason"`
	ActorID       string    `json:"actorId"`
	ReferenceType string    `json:"referenceType,omitempty"`
	ReferenceID   *string   `json:"referenceId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FromMovement creates MovementResponse from the entity.
func FromMovement(m *entity.MovementRecord) MovementResponse {
	resp := MovementResponse{
		ID:            m.ID.String(),
		ProductID:     m.ProductID.String(),
		BranchID:      m.BranchID.String(),
		Type:          string(m.MovementType),
		Quantity:      m.Quantity.Int64(),
		Reason:        m.Reason,
		ActorID:       m.ActorID.String(),
		ReferenceType: string(m.ReferenceType),
		CreatedAt:     m.CreatedAt,
	}
	if m.VariationID != nil {
		variationID := m.VariationID.String()
		resp.VariationID = &variationID
	}
	if m.ReferenceID != nil {
		refID := m.ReferenceID.String()
		resp.ReferenceID = &refID
	}
	return resp
}

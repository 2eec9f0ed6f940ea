package dto

import (
	"encoding/json"
	"time"

	"posledger/internal/core/entity"
)

// ActivityResponse is one activity log entry.
type ActivityResponse struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Delta         json.RawMessage `json:"delta,omitempty"`
	ActorID       string          `json:"actorId"`
	BranchID      *string         `json:"branchId,omitempty"`
	ReferenceType string          `json:"referenceType,omitempty"`
	ReferenceID   *string         `json:"referenceId,omitempty"`
	Restored      bool            `json:"restored"`
	RestoredBy    *string         `json:"restoredBy,omitempty"`
	RestoredAt    *time.Time      `json:"restoredAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// FromActivity creates ActivityResponse from the entity.
func FromActivity(a *entity.Activity) ActivityResponse {
	resp := ActivityResponse{
		ID:            a.ID.String(),
		Type:          string(a.Type),
		Title:         a.Title,
		Description:   a.Description,
		Delta:         a.Delta,
		ActorID:       a.ActorID.String(),
		ReferenceType: a.ReferenceType,
		Restored:      a.Restored(),
		RestoredAt:    a.RestoredAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.BranchID != nil {
		branchID := a.BranchID.String()
		resp.BranchID = &branchID
	}
	if a.ReferenceID != nil {
		refID := a.ReferenceID.String()
		resp.ReferenceID = &refID
	}
	if a.RestoredBy != nil {
		restoredBy := a.RestoredBy.String()
		resp.RestoredBy = &restoredBy
	}
	return resp
}

// PatchActivityRequest updates presentation fields of an activity entry.
// Type and delta are immutable once recorded; sending either is rejected.
type PatchActivityRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Type        *string         `json:"type"`
	Delta       json.RawMessage `json:"delta"`
}

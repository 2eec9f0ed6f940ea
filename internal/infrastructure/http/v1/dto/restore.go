package dto

import (
	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
	"posledger/internal/domain/restore"
)

// RestoreRequest asks for a past activity to be reversed.
type RestoreRequest struct {
	ActivityID string `json:"activityId" binding:"required"`
	Reason     string `json:"reason"`
	DryRun     bool   `json:"dryRun"`
}

// ToRequest converts the DTO into an engine request.
func (r RestoreRequest) ToRequest() (restore.Request, error) {
	activityID, err := id.Parse(r.ActivityID)
	if err != nil {
		return restore.Request{}, apperror.NewValidation("invalid activityId format")
	}
	return restore.Request{
		ActivityID: activityID,
		Reason:     r.Reason,
		DryRun:     r.DryRun,
	}, nil
}

// RestoreResponse is the outcome of a restore request.
// Preview is set on dry runs, Restored on applied restores.
type RestoreResponse struct {
	DryRun   bool              `json:"dryRun"`
	Preview  *restore.Preview  `json:"preview,omitempty"`
	Restored *ActivityResponse `json:"restored,omitempty"`
}

// FromRestoreResult creates RestoreResponse from an engine result.
func FromRestoreResult(res *restore.Result, dryRun bool) RestoreResponse {
	resp := RestoreResponse{DryRun: dryRun, Preview: res.Preview}
	if res.Restored != nil {
		restored := FromActivity(res.Restored)
		resp.Restored = &restored
	}
	return resp
}

// Package activity is the audit log of every mutating inventory operation.
package activity

import (
	"context"
	"time"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
)

// Repository stores activity records. Records are append-only except for
// the title/description patch and the restored marker.
type Repository interface {
	Create(ctx context.Context, a *entity.Activity) error
	Get(ctx context.Context, activityID id.ID) (*entity.Activity, bool, error)
	List(ctx context.Context, filter ListFilter) ([]entity.Activity, error)

	// UpdateText patches title and description only.
	UpdateText(ctx context.Context, activityID id.ID, patch PatchFields) error

	// MarkRestored stamps the record with the restoring activity and time.
	MarkRestored(ctx context.Context, activityID, restoredBy id.ID, at time.Time) error
}

// PatchFields are the only mutable fields of a recorded activity.
type PatchFields struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p PatchFields) IsEmpty() bool {
	return p.Title == nil && p.Description == nil
}

// ListFilter narrows an activity query. Results are newest first.
type ListFilter struct {
	Type     *entity.ActivityType
	BranchID *id.ID
	ActorID  *id.ID
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

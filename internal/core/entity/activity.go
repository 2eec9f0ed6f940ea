package entity

import (
	"encoding/json"
	"time"

	"posledger/internal/core/id"
)

// ActivityType classifies an activity log entry.
type ActivityType string

const (
	ActivitySell     ActivityType = "sell"
	ActivityStockIn  ActivityType = "stock_in"
	ActivityStockOut ActivityType = "stock_out"
	ActivityTransfer ActivityType = "transfer"
	ActivityRestore  ActivityType = "restore"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivitySell, ActivityStockIn, ActivityStockOut, ActivityTransfer, ActivityRestore:
		return true
	}
	return false
}

// Restorable reports whether entries of this type can be restored.
// Restore entries themselves cannot be restored again.
func (t ActivityType) Restorable() bool {
	return t.Valid() && t != ActivityRestore
}

// Activity is one entry of the activity log. The delta payload captures the
// exact state change and is immutable once recorded; only title and
// description may be patched afterwards.
type Activity struct {
	ID            id.ID           `db:"id" json:"id"`
	Type          ActivityType    `db:"type" json:"type"`
	Title         string          `db:"title" json:"title"`
	Description   string          `db:"description" json:"description"`
	Delta         json.RawMessage `db:"delta" json:"delta"`
	ActorID       id.ID           `db:"actor_id" json:"actorId"`
	BranchID      *id.ID          `db:"branch_id" json:"branchId,omitempty"`
	ReferenceType string          `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID   *id.ID          `db:"reference_id" json:"referenceId,omitempty"`
	RestoredBy    *id.ID          `db:"restored_by" json:"restoredBy,omitempty"`
	RestoredAt    *time.Time      `db:"restored_at" json:"restoredAt,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// Restored reports whether this entry has already been restored.
func (a Activity) Restored() bool {
	return a.RestoredAt != nil
}

package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
)

type auditFields struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type mockRecord struct {
	auditFields
	ID       id.ID          `db:"id" json:"id"`
	Name     string         `db:"name" json:"name"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Internal string         `db:"-" json:"-"`
	untagged string
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[mockRecord]()

	expectedCols := []string{
		"created_at", "updated_at", "id", "name", "quantity",
	}
	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
	assert.NotContains(t, cols, "untagged")
}

func TestExtractDBColumns_InventoryRow(t *testing.T) {
	cols := ExtractDBColumns[entity.InventoryRow]()

	for _, expected := range []string{"id", "product_id", "branch_id", "quantity", "last_restocked"} {
		assert.Contains(t, cols, expected)
	}
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	rec := mockRecord{
		auditFields: auditFields{
			CreatedAt: now,
			UpdatedAt: now,
		},
		ID:       id.New(),
		Name:     "Coffee",
		Quantity: 7,
		Internal: "hidden",
	}

	m := StructToMap(rec)

	assert.Equal(t, rec.ID, m["id"])
	assert.Equal(t, "Coffee", m["name"])
	assert.Equal(t, types.Quantity(7), m["quantity"])
	assert.Equal(t, now, m["created_at"])
	_, hasInternal := m["-"]
	assert.False(t, hasInternal)
}

func TestStructToMap_Pointer(t *testing.T) {
	rec := &mockRecord{Name: "ptr"}
	m := StructToMap(rec)
	assert.Equal(t, "ptr", m["name"])
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}

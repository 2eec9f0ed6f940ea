package register_repo

import (
	"testing"

	"posledger/internal/core/entity"
	"posledger/internal/infrastructure/storage/postgres"
)

// Every select of balanceColumns scans into entity.InventoryRow, and the
// insert binds the same columns to its fields. A column with no db-tagged
// field breaks pgxscan's strict mapping.
func TestBalanceColumns_MatchInventoryRow(t *testing.T) {
	tagged := make(map[string]bool)
	for _, col := range postgres.ExtractDBColumns[entity.InventoryRow]() {
		tagged[col] = true
	}

	for _, col := range balanceColumns {
		if !tagged[col] {
			t.Errorf("column %q has no db-tagged field on entity.InventoryRow", col)
		}
	}
	if got, want := len(balanceColumns), len(tagged); got != want {
		t.Errorf("column count mismatch: query selects %d, entity has %d", got, want)
	}
}

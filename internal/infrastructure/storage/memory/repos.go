package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/activity"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/inventory"
	"posledger/internal/domain/ledger"
	"posledger/internal/domain/sales"
)

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct {
	store *Store
}

func NewInventoryRepo(store *Store) *InventoryRepo {
	return &InventoryRepo{store: store}
}

func (r *InventoryRepo) Get(ctx context.Context, triple entity.Triple) (*entity.InventoryRow, bool, error) {
	st := r.store.read(ctx)
	row, ok := st.balances[triple.String()]
	if !ok {
		return nil, false, nil
	}
	return &row, true, nil
}

// GetForUpdate is identical to Get: transactions are serialized by the
// store lock, so every read inside a transaction is already exclusive.
func (r *InventoryRepo) GetForUpdate(ctx context.Context, triple entity.Triple) (*entity.InventoryRow, bool, error) {
	return r.Get(ctx, triple)
}

func (r *InventoryRepo) Create(ctx context.Context, row *entity.InventoryRow) error {
	return r.store.write(ctx, func(st *state) error {
		key := row.Triple().String()
		if _, exists := st.balances[key]; exists {
			return apperror.NewConflict(fmt.Sprintf("inventory row %s already exists", key))
		}
		st.balances[key] = *row
		return nil
	})
}

func (r *InventoryRepo) UpdateQuantity(ctx context.Context, triple entity.Triple, quantity types.Quantity, lastRestocked *time.Time) error {
	return r.store.write(ctx, func(st *state) error {
		key := triple.String()
		row, ok := st.balances[key]
		if !ok {
			return apperror.NewNotFound("inventory", key)
		}
		row.Quantity = quantity
		row.UpdatedAt = time.Now().UTC()
		if lastRestocked != nil {
			row.LastRestocked = lastRestocked
		}
		st.balances[key] = row
		return nil
	})
}

func (r *InventoryRepo) UpdateLevels(ctx context.Context, triple entity.Triple, patch inventory.LevelsPatch) error {
	return r.store.write(ctx, func(st *state) error {
		key := triple.String()
		row, ok := st.balances[key]
		if !ok {
			return apperror.NewNotFound("inventory", key)
		}
		if patch.MinStockLevel != nil {
			v := *patch.MinStockLevel
			row.MinStockLevel = &v
		}
		if patch.MaxStockLevel != nil {
			v := *patch.MaxStockLevel
			row.MaxStockLevel = &v
		}
		row.UpdatedAt = time.Now().UTC()
		st.balances[key] = row
		return nil
	})
}

func (r *InventoryRepo) ListByBranch(ctx context.Context, branchID id.ID, filter inventory.ListFilter) ([]entity.InventoryRow, error) {
	st := r.store.read(ctx)
	var rows []entity.InventoryRow
	for _, row := range st.balances {
		if row.BranchID != branchID {
			continue
		}
		if filter.ProductID != nil && row.ProductID != *filter.ProductID {
			continue
		}
		if filter.ExcludeZero && row.Quantity.IsZero() {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Triple().String() < rows[j].Triple().String()
	})
	return paginate(rows, filter.Limit, filter.Offset), nil
}

func (r *InventoryRepo) ListTriples(ctx context.Context) ([]entity.Triple, error) {
	st := r.store.read(ctx)
	var triples []entity.Triple
	for _, row := range st.balances {
		triples = append(triples, row.Triple())
	}
	sort.Slice(triples, func(i, j int) bool {
		return triples[i].String() < triples[j].String()
	})
	return triples, nil
}

// LedgerRepo implements ledger.Repository. When RecomputeBalance is set it
// rebuilds the affected balance from the movement history, the way the
// store-side recompute does.
type LedgerRepo struct {
	store *Store
}

func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) Append(ctx context.Context, rec *entity.MovementRecord, opts ledger.AppendOptions) error {
	return r.AppendBatch(ctx, []*entity.MovementRecord{rec}, opts)
}

func (r *LedgerRepo) AppendBatch(ctx context.Context, recs []*entity.MovementRecord, opts ledger.AppendOptions) error {
	return r.store.write(ctx, func(st *state) error {
		for _, rec := range recs {
			st.movements = append(st.movements, *rec)
		}
		if !opts.RecomputeBalance {
			return nil
		}
		for _, rec := range recs {
			if err := recompute(st, rec.Triple(), rec.MovementType == entity.MovementIn); err != nil {
				return err
			}
		}
		return nil
	})
}

func recompute(st *state, triple entity.Triple, restocked bool) error {
	net := signedSum(st, triple)
	if net.IsNegative() {
		return apperror.NewInsufficientStock(triple.ProductID.String(), net.Abs().Int64(), 0)
	}
	key := triple.String()
	row, ok := st.balances[key]
	if !ok {
		row = entity.InventoryRow{
			ID:          id.New(),
			ProductID:   triple.ProductID,
			VariationID: triple.VariationID,
			BranchID:    triple.BranchID,
		}
	}
	now := time.Now().UTC()
	row.Quantity = net
	row.UpdatedAt = now
	if restocked {
		row.LastRestocked = &now
	}
	st.balances[key] = row
	return nil
}

func signedSum(st *state, triple entity.Triple) types.Quantity {
	key := triple.String()
	var net types.Quantity
	for i := range st.movements {
		if st.movements[i].Triple().String() == key {
			net += st.movements[i].SignedQuantity()
		}
	}
	return net
}

func (r *LedgerRepo) History(ctx context.Context, filter ledger.HistoryFilter) ([]entity.MovementRecord, error) {
	st := r.store.read(ctx)
	var out []entity.MovementRecord
	for i := range st.movements {
		m := st.movements[i]
		if filter.ProductID != nil && m.ProductID != *filter.ProductID {
			continue
		}
		if filter.VariationID != nil && (m.VariationID == nil || *m.VariationID != *filter.VariationID) {
			continue
		}
		if filter.BranchID != nil && m.BranchID != *filter.BranchID {
			continue
		}
		if filter.MovementType != nil && m.MovementType != *filter.MovementType {
			continue
		}
		if filter.ReferenceType != nil && m.ReferenceType != *filter.ReferenceType {
			continue
		}
		if filter.ReferenceID != nil && (m.ReferenceID == nil || *m.ReferenceID != *filter.ReferenceID) {
			continue
		}
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, m)
	}
	// Newest first; insertion order breaks creation-time ties.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *LedgerRepo) SignedSum(ctx context.Context, triple entity.Triple) (types.Quantity, error) {
	st := r.store.read(ctx)
	return signedSum(st, triple), nil
}

// SaleRepo implements sales.Repository.
type SaleRepo struct {
	store *Store
}

func NewSaleRepo(store *Store) *SaleRepo {
	return &SaleRepo{store: store}
}

func (r *SaleRepo) CreateSale(ctx context.Context, sale *entity.SaleTransaction) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.sales[sale.ID]; exists {
			return apperror.NewConflict(fmt.Sprintf("sale %s already exists", sale.ID))
		}
		st.sales[sale.ID] = *sale
		return nil
	})
}

func (r *SaleRepo) SaveLines(ctx context.Context, lines []*entity.SaleLine) error {
	return r.store.write(ctx, func(st *state) error {
		for _, l := range lines {
			st.saleLines[l.SaleID] = append(st.saleLines[l.SaleID], *l)
		}
		return nil
	})
}

func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*entity.SaleTransaction, bool, error) {
	st := r.store.read(ctx)
	sale, ok := st.sales[saleID]
	if !ok {
		return nil, false, nil
	}
	return &sale, true, nil
}

func (r *SaleRepo) GetLines(ctx context.Context, saleID id.ID) ([]entity.SaleLine, error) {
	st := r.store.read(ctx)
	lines := make([]entity.SaleLine, len(st.saleLines[saleID]))
	copy(lines, st.saleLines[saleID])
	return lines, nil
}

func (r *SaleRepo) MarkVoided(ctx context.Context, saleID id.ID) error {
	return r.store.write(ctx, func(st *state) error {
		sale, ok := st.sales[saleID]
		if !ok {
			return apperror.NewNotFound("sale", saleID)
		}
		sale.Voided = true
		st.sales[saleID] = sale
		return nil
	})
}

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	store *Store
}

func NewCatalogRepo(store *Store) *CatalogRepo {
	return &CatalogRepo{store: store}
}

func (r *CatalogRepo) GetProduct(ctx context.Context, productID id.ID) (*entity.Product, bool, error) {
	st := r.store.read(ctx)
	p, ok := st.products[productID]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (r *CatalogRepo) GetVariation(ctx context.Context, variationID id.ID) (*entity.Variation, bool, error) {
	st := r.store.read(ctx)
	v, ok := st.variations[variationID]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (r *CatalogRepo) FirstVariation(ctx context.Context, productID id.ID) (*entity.Variation, bool, error) {
	st := r.store.read(ctx)
	var (
		first *entity.Variation
	)
	for vid := range st.variations {
		v := st.variations[vid]
		if v.ProductID != productID {
			continue
		}
		if first == nil ||
			v.CreatedAt.Before(first.CreatedAt) ||
			(v.CreatedAt.Equal(first.CreatedAt) && v.ID.String() < first.ID.String()) {
			vv := v
			first = &vv
		}
	}
	if first == nil {
		return nil, false, nil
	}
	return first, true, nil
}

func (r *CatalogRepo) GetBranch(ctx context.Context, branchID id.ID) (*entity.Branch, bool, error) {
	st := r.store.read(ctx)
	b, ok := st.branches[branchID]
	if !ok {
		return nil, false, nil
	}
	return &b, true, nil
}

// ActivityRepo implements activity.Repository.
type ActivityRepo struct {
	store *Store
}

func NewActivityRepo(store *Store) *ActivityRepo {
	return &ActivityRepo{store: store}
}

func (r *ActivityRepo) Create(ctx context.Context, a *entity.Activity) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.activities[a.ID]; exists {
			return apperror.NewConflict(fmt.Sprintf("activity %s already exists", a.ID))
		}
		st.activities[a.ID] = *a
		st.activityOrder = append(st.activityOrder, a.ID)
		return nil
	})
}

func (r *ActivityRepo) Get(ctx context.Context, activityID id.ID) (*entity.Activity, bool, error) {
	st := r.store.read(ctx)
	a, ok := st.activities[activityID]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (r *ActivityRepo) List(ctx context.Context, filter activity.ListFilter) ([]entity.Activity, error) {
	st := r.store.read(ctx)
	var out []entity.Activity
	for i := len(st.activityOrder) - 1; i >= 0; i-- {
		a := st.activities[st.activityOrder[i]]
		if filter.Type != nil && a.Type != *filter.Type {
			continue
		}
		if filter.BranchID != nil && (a.BranchID == nil || *a.BranchID != *filter.BranchID) {
			continue
		}
		if filter.ActorID != nil && a.ActorID != *filter.ActorID {
			continue
		}
		if filter.From != nil && a.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, a)
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *ActivityRepo) UpdateText(ctx context.Context, activityID id.ID, patch activity.PatchFields) error {
	return r.store.write(ctx, func(st *state) error {
		a, ok := st.activities[activityID]
		if !ok {
			return apperror.NewNotFound("activity", activityID)
		}
		if patch.Title != nil {
			a.Title = *patch.Title
		}
		if patch.Description != nil {
			a.Description = *patch.Description
		}
		a.UpdatedAt = time.Now().UTC()
		st.activities[activityID] = a
		return nil
	})
}

func (r *ActivityRepo) MarkRestored(ctx context.Context, activityID, restoredBy id.ID, at time.Time) error {
	return r.store.write(ctx, func(st *state) error {
		a, ok := st.activities[activityID]
		if !ok {
			return apperror.NewNotFound("activity", activityID)
		}
		if a.RestoredAt != nil {
			return apperror.NewRestoreConflict("activity has already been restored")
		}
		a.RestoredBy = &restoredBy
		a.RestoredAt = &at
		a.UpdatedAt = at
		st.activities[activityID] = a
		return nil
	})
}

// SequenceQuerier implements numerator.Querier over the in-memory
// sequences table.
type SequenceQuerier struct {
	store *Store
}

func NewSequenceQuerier(store *Store) *SequenceQuerier {
	return &SequenceQuerier{store: store}
}

type seqRow struct {
	val int64
	err error
}

func (r seqRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 1 {
		return fmt.Errorf("expected one destination, got %d", len(dest))
	}
	p, ok := dest[0].(*int64)
	if !ok {
		return fmt.Errorf("expected *int64 destination")
	}
	*p = r.val
	return nil
}

// QueryRow understands the UPSERT statements the numerator issues against
// sys_sequences.
func (q *SequenceQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	var out seqRow
	err := q.store.write(ctx, func(st *state) error {
		if len(args) == 0 {
			return fmt.Errorf("sequence key argument missing")
		}
		key, ok := args[0].(string)
		if !ok {
			return fmt.Errorf("sequence key must be a string")
		}

		switch {
		case strings.Contains(sql, "current_val + $2"):
			inc, _ := args[1].(int64)
			st.sequences[key] += inc
		case strings.Contains(sql, "current_val + 1"):
			st.sequences[key]++
		default:
			v, _ := args[1].(int64)
			st.sequences[key] = v
		}
		out.val = st.sequences[key]
		return nil
	})
	if err != nil {
		out.err = err
	}
	return out
}

var (
	_ inventory.Repository = (*InventoryRepo)(nil)
	_ ledger.Repository    = (*LedgerRepo)(nil)
	_ sales.Repository     = (*SaleRepo)(nil)
	_ catalog.Repository   = (*CatalogRepo)(nil)
	_ activity.Repository  = (*ActivityRepo)(nil)
)

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

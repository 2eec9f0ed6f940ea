package movement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/security"
	"posledger/internal/core/types"
	"posledger/internal/domain/activity"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/inventory"
	"posledger/internal/domain/ledger"
	"posledger/internal/domain/movement"
	"posledger/internal/infrastructure/storage/memory"
	"posledger/pkg/numerator"
)

type fixture struct {
	mem       *memory.Store
	store     *inventory.Store
	ledgerSvc *ledger.Service
	actSvc    *activity.Service
	proc      *movement.Processor

	branch  entity.Branch
	branch2 entity.Branch
	product entity.Product
}

func newFixture(t *testing.T, writer ledger.BalanceWriter) *fixture {
	t.Helper()

	mem := memory.NewStore()
	store := inventory.NewStore(memory.NewInventoryRepo(mem))
	ledgerSvc := ledger.NewService(memory.NewLedgerRepo(mem))
	catalogSvc := catalog.NewService(memory.NewCatalogRepo(mem))
	actSvc := activity.NewService(memory.NewActivityRepo(mem), nil)
	numbers := numerator.New(memory.NewSequenceQuerier(mem))
	scope := security.NewScope(security.MustBranchPolicy(""))

	f := &fixture{
		mem:       mem,
		store:     store,
		ledgerSvc: ledgerSvc,
		actSvc:    actSvc,
		branch:    entity.Branch{ID: id.New(), Name: "Main", Active: true},
		branch2:   entity.Branch{ID: id.New(), Name: "Downtown", Active: true},
		product:   entity.Product{ID: id.New(), Name: "Coffee", SKU: "COF-1", Price: 450, Active: true},
	}
	mem.SeedBranch(f.branch)
	mem.SeedBranch(f.branch2)
	mem.SeedProduct(f.product)

	f.proc = movement.NewProcessor(
		mem, catalogSvc, store, ledgerSvc, actSvc,
		numbers, scope,
		movement.ProcessorConfig{Writer: writer},
	)
	return f
}

func (f *fixture) ctx() context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{
		ID:   id.New(),
		Role: appctx.RoleManager,
	})
}

func (f *fixture) quantityAt(t *testing.T, branchID id.ID) types.Quantity {
	t.Helper()
	qty, err := f.store.Quantity(context.Background(), entity.Triple{ProductID: f.product.ID, BranchID: branchID})
	require.NoError(t, err)
	return qty
}

func TestApply_StockIn(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	rec, err := f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID,
		BranchID:  f.branch.ID,
		Type:      entity.MovementIn,
		Quantity:  10,
		Reason:    "delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.MovementIn, rec.MovementType)
	assert.Equal(t, entity.ReferenceManual, rec.ReferenceType)

	assert.Equal(t, types.Quantity(10), f.quantityAt(t, f.branch.ID))

	// Exactly one balance write and one ledger entry.
	records, err := f.ledgerSvc.History(ctx, ledger.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Activity recorded in the same transaction.
	entries, err := f.actSvc.List(ctx, activity.ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ActivityStockIn, entries[0].Type)
}

func TestApply_StockOut(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	_, err := f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementIn, Quantity: 10, Reason: "delivery",
	})
	require.NoError(t, err)

	_, err = f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementOut, Quantity: 4, Reason: "damage",
	})
	require.NoError(t, err)

	assert.Equal(t, types.Quantity(6), f.quantityAt(t, f.branch.ID))

	entries, err := f.actSvc.List(ctx, activity.ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, entity.ActivityStockOut, entries[0].Type)
}

func TestApply_OutPastZeroFails(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	_, err := f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementOut, Quantity: 1, Reason: "damage",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Nothing landed anywhere.
	records, err := f.ledgerSvc.History(ctx, ledger.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
	entries, err := f.actSvc.List(ctx, activity.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// The balance must move exactly once per movement no matter which side owns
// the write.
func TestApply_SingleWriterInBothModes(t *testing.T) {
	for _, writer := range []ledger.BalanceWriter{ledger.WriterService, ledger.WriterLedger} {
		t.Run(string(writer), func(t *testing.T) {
			f := newFixture(t, writer)
			ctx := f.ctx()

			_, err := f.proc.Apply(ctx, movement.ApplyRequest{
				ProductID: f.product.ID, BranchID: f.branch.ID,
				Type: entity.MovementIn, Quantity: 10, Reason: "delivery",
			})
			require.NoError(t, err)
			assert.Equal(t, types.Quantity(10), f.quantityAt(t, f.branch.ID))

			_, err = f.proc.Apply(ctx, movement.ApplyRequest{
				ProductID: f.product.ID, BranchID: f.branch.ID,
				Type: entity.MovementOut, Quantity: 3, Reason: "damage",
			})
			require.NoError(t, err)
			assert.Equal(t, types.Quantity(7), f.quantityAt(t, f.branch.ID))
		})
	}
}

func TestApply_RecomputeStampsLastRestocked(t *testing.T) {
	f := newFixture(t, ledger.WriterLedger)
	ctx := f.ctx()
	triple := entity.Triple{ProductID: f.product.ID, BranchID: f.branch.ID}

	// First stock in creates the row with last_restocked set.
	_, err := f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementIn, Quantity: 10, Reason: "delivery",
	})
	require.NoError(t, err)

	row, err := f.store.Get(ctx, triple)
	require.NoError(t, err)
	require.NotNil(t, row.LastRestocked, "stock in must stamp last_restocked")
	restocked := *row.LastRestocked

	_, err = f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementOut, Quantity: 3, Reason: "damage",
	})
	require.NoError(t, err)

	row, err = f.store.Get(ctx, triple)
	require.NoError(t, err)
	require.NotNil(t, row.LastRestocked)
	assert.Equal(t, restocked, *row.LastRestocked, "stock out must not move last_restocked")
}

func TestApply_Validation(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	cases := []struct {
		name string
		req  movement.ApplyRequest
	}{
		{
			name: "unknown type",
			req:  movement.ApplyRequest{ProductID: f.product.ID, BranchID: f.branch.ID, Type: "sideways", Quantity: 1, Reason: "x"},
		},
		{
			name: "zero quantity",
			req:  movement.ApplyRequest{ProductID: f.product.ID, BranchID: f.branch.ID, Type: entity.MovementIn, Quantity: 0, Reason: "x"},
		},
		{
			name: "missing reason",
			req:  movement.ApplyRequest{ProductID: f.product.ID, BranchID: f.branch.ID, Type: entity.MovementIn, Quantity: 1},
		},
		{
			name: "nil branch",
			req:  movement.ApplyRequest{ProductID: f.product.ID, Type: entity.MovementIn, Quantity: 1, Reason: "x"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.proc.Apply(ctx, tc.req)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestTransfer(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	_, err := f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementIn, Quantity: 10, Reason: "delivery",
	})
	require.NoError(t, err)

	number, err := f.proc.Transfer(ctx, movement.TransferRequest{
		ProductID:    f.product.ID,
		FromBranchID: f.branch.ID,
		ToBranchID:   f.branch2.ID,
		Quantity:     4,
	})
	require.NoError(t, err)
	assert.Contains(t, number, "TRF-")

	assert.Equal(t, types.Quantity(6), f.quantityAt(t, f.branch.ID))
	assert.Equal(t, types.Quantity(4), f.quantityAt(t, f.branch2.ID))

	// One out at the source, one in at the destination.
	refType := entity.ReferenceTransfer
	records, err := f.ledgerSvc.History(ctx, ledger.HistoryFilter{ReferenceType: &refType})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// One transfer activity.
	transferType := entity.ActivityTransfer
	entries, err := f.actSvc.List(ctx, activity.ListFilter{Type: &transferType})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	delta, err := activity.UnmarshalDelta[activity.TransferDelta](entries[0].Delta)
	require.NoError(t, err)
	assert.Equal(t, f.branch.ID, delta.FromBranchID)
	assert.Equal(t, f.branch2.ID, delta.ToBranchID)
	assert.Equal(t, types.Quantity(4), delta.Quantity)
}

func TestTransfer_InsufficientSourceAbortsBothLegs(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	_, err := f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementIn, Quantity: 2, Reason: "delivery",
	})
	require.NoError(t, err)

	_, err = f.proc.Transfer(ctx, movement.TransferRequest{
		ProductID:    f.product.ID,
		FromBranchID: f.branch.ID,
		ToBranchID:   f.branch2.ID,
		Quantity:     5,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Neither side moved.
	assert.Equal(t, types.Quantity(2), f.quantityAt(t, f.branch.ID))
	assert.Equal(t, types.Quantity(0), f.quantityAt(t, f.branch2.ID))
}

func TestTransfer_Validation(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	// Same branch on both sides.
	_, err := f.proc.Transfer(ctx, movement.TransferRequest{
		ProductID:    f.product.ID,
		FromBranchID: f.branch.ID,
		ToBranchID:   f.branch.ID,
		Quantity:     1,
	})
	require.Error(t, err)

	// Zero quantity.
	_, err = f.proc.Transfer(ctx, movement.TransferRequest{
		ProductID:    f.product.ID,
		FromBranchID: f.branch.ID,
		ToBranchID:   f.branch2.ID,
		Quantity:     0,
	})
	require.Error(t, err)
}

func TestApply_UnknownProduct(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	_, err := f.proc.Apply(ctx, movement.ApplyRequest{
		ProductID: id.New(), BranchID: f.branch.ID,
		Type: entity.MovementIn, Quantity: 1, Reason: "delivery",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

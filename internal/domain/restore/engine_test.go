package restore_test

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
	"posledger/internal/domain/restore"
	"posledger/internal/domain/sales"
	"posledger/internal/infrastructure/storage/memory"
	"posledger/pkg/numerator"
)

type fixture struct {
	mem       *memory.Store
	store     *inventory.Store
	ledgerSvc *ledger.Service
	actSvc    *activity.Service
	recorder  *activity.Recorder
	saleRepo  sales.Repository
	saleProc  *sales.Processor
	moveProc  *movement.Processor
	engine    *restore.Engine

	branch  entity.Branch
	branch2 entity.Branch
	product entity.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := memory.NewStore()
	store := inventory.NewStore(memory.NewInventoryRepo(mem))
	ledgerSvc := ledger.NewService(memory.NewLedgerRepo(mem))
	catalogSvc := catalog.NewService(memory.NewCatalogRepo(mem))
	actSvc := activity.NewService(memory.NewActivityRepo(mem), nil)
	recorder := activity.NewRecorder(actSvc, 16)
	saleRepo := memory.NewSaleRepo(mem)
	numbers := numerator.New(memory.NewSequenceQuerier(mem))
	scope := security.NewScope(security.MustBranchPolicy(""))

	f := &fixture{
		mem:       mem,
		store:     store,
		ledgerSvc: ledgerSvc,
		actSvc:    actSvc,
		recorder:  recorder,
		saleRepo:  saleRepo,
		branch:    entity.Branch{ID: id.New(), Name: "Main", Active: true},
		branch2:   entity.Branch{ID: id.New(), Name: "Downtown", Active: true},
		product:   entity.Product{ID: id.New(), Name: "Coffee", SKU: "COF-1", Price: 450, Active: true},
	}
	mem.SeedBranch(f.branch)
	mem.SeedBranch(f.branch2)
	mem.SeedProduct(f.product)

	f.saleProc = sales.NewProcessor(
		mem, saleRepo, catalogSvc, store, ledgerSvc,
		numbers, recorder, scope, sales.ProcessorConfig{},
	)
	f.moveProc = movement.NewProcessor(
		mem, catalogSvc, store, ledgerSvc, actSvc,
		numbers, scope, movement.ProcessorConfig{},
	)
	f.engine = restore.NewEngine(
		mem, actSvc, store, ledgerSvc, saleRepo, scope,
		restore.EngineConfig{},
	)
	return f
}

func managerCtx() context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{
		ID:   id.New(),
		Role: appctx.RoleManager,
	})
}

func (f *fixture) quantity(t *testing.T, branchID id.ID) types.Quantity {
	t.Helper()
	qty, err := f.store.Quantity(context.Background(), entity.Triple{ProductID: f.product.ID, BranchID: branchID})
	require.NoError(t, err)
	return qty
}

// sellAndRecord commits a sale and waits for the sell activity entry.
func (f *fixture) sellAndRecord(t *testing.T, qty types.Quantity) (*entity.SaleTransaction, *entity.Activity) {
	t.Helper()
	ctx := managerCtx()

	sale, err := f.saleProc.Sell(ctx, sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCash,
		Lines:         []sales.SellLine{{ProductID: f.product.ID, Quantity: qty, UnitPrice: 450}},
	})
	require.NoError(t, err)

	f.recorder.Close()

	sellType := entity.ActivitySell
	entries, err := f.actSvc.List(ctx, activity.ListFilter{Type: &sellType})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return sale, &entries[0]
}

func (f *fixture) stockIn(t *testing.T, qty types.Quantity) *entity.Activity {
	t.Helper()
	ctx := managerCtx()
	_, err := f.moveProc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementIn, Quantity: qty, Reason: "delivery",
	})
	require.NoError(t, err)

	inType := entity.ActivityStockIn
	entries, err := f.actSvc.List(ctx, activity.ListFilter{Type: &inType})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return &entries[0]
}

func TestRestore_Sell(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx()

	f.stockIn(t, 5)
	sale, sellActivity := f.sellAndRecord(t, 2)
	require.Equal(t, types.Quantity(3), f.quantity(t, f.branch.ID))

	result, err := f.engine.Restore(ctx, restore.Request{
		ActivityID: sellActivity.ID,
		Reason:     "customer returned the order",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Restored)

	// Quantities come back.
	assert.Equal(t, types.Quantity(5), f.quantity(t, f.branch.ID))

	// The sale row is voided.
	got, found, err := f.saleRepo.GetByID(ctx, sale.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Voided)

	// The original entry is stamped.
	original, err := f.actSvc.Get(ctx, sellActivity.ID)
	require.NoError(t, err)
	assert.True(t, original.Restored())
	require.NotNil(t, original.RestoredBy)
	assert.Equal(t, result.Restored.ID, *original.RestoredBy)

	// The restore is itself an activity referencing the original.
	assert.Equal(t, entity.ActivityRestore, result.Restored.Type)
	require.NotNil(t, result.Restored.ReferenceID)
	assert.Equal(t, sellActivity.ID, *result.Restored.ReferenceID)

	// The compensating movement is in the ledger.
	refType := entity.ReferenceRestore
	records, err := f.ledgerSvc.History(ctx, ledger.HistoryFilter{ReferenceType: &refType})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.MovementIn, records[0].MovementType)
	assert.Equal(t, types.Quantity(2), records[0].Quantity)
}

// The inverse is planned inside the apply transaction, so the sale-exists
// check runs against current state: a sell entry whose sale row is gone
// restores the quantities and simply has nothing to void.
func TestRestore_SellWithoutSaleRowSkipsVoid(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx()

	f.stockIn(t, 5)

	raw, err := activity.MarshalDelta(&activity.SellDelta{
		SaleID: id.New(),
		Number: "S-000099",
		Items: []activity.SellItem{
			{ProductID: f.product.ID, Quantity: 2, UnitPrice: 450},
		},
		TotalAmount: 900,
	})
	require.NoError(t, err)

	branchID := f.branch.ID
	orphan := &entity.Activity{
		Type:     entity.ActivitySell,
		Title:    "Sale S-000099",
		Delta:    raw,
		ActorID:  id.New(),
		BranchID: &branchID,
	}
	require.NoError(t, f.actSvc.Record(ctx, orphan))

	result, err := f.engine.Restore(ctx, restore.Request{
		ActivityID: orphan.ID,
		Reason:     "data repair",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Restored)
	assert.Equal(t, types.Quantity(7), f.quantity(t, f.branch.ID))
}

func TestRestore_AlreadyRestoredConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx()

	f.stockIn(t, 5)
	_, sellActivity := f.sellAndRecord(t, 2)

	_, err := f.engine.Restore(ctx, restore.Request{ActivityID: sellActivity.ID})
	require.NoError(t, err)

	_, err = f.engine.Restore(ctx, restore.Request{ActivityID: sellActivity.ID})
	require.Error(t, err)
	assert.True(t, apperror.IsRestoreConflict(err))
}

func TestRestore_StockInAfterDrainConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx()

	inActivity := f.stockIn(t, 5)

	// Drain the stock so the inverse "out 5" would go negative.
	_, err := f.moveProc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementOut, Quantity: 4, Reason: "damage",
	})
	require.NoError(t, err)

	_, err = f.engine.Restore(ctx, restore.Request{ActivityID: inActivity.ID})
	require.Error(t, err)
	assert.True(t, apperror.IsRestoreConflict(err))

	// The attempt left the state alone.
	assert.Equal(t, types.Quantity(1), f.quantity(t, f.branch.ID))
	original, err := f.actSvc.Get(ctx, inActivity.ID)
	require.NoError(t, err)
	assert.False(t, original.Restored())
}

func TestRestore_StockOutInverse(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx()

	f.stockIn(t, 5)
	_, err := f.moveProc.Apply(ctx, movement.ApplyRequest{
		ProductID: f.product.ID, BranchID: f.branch.ID,
		Type: entity.MovementOut, Quantity: 3, Reason: "damage",
	})
	require.NoError(t, err)
	require.Equal(t, types.Quantity(2), f.quantity(t, f.branch.ID))

	outType := entity.ActivityStockOut
	entries, err := f.actSvc.List(ctx, activity.ListFilter{Type: &outType})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = f.engine.Restore(ctx, restore.Request{ActivityID: entries[0].ID})
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(5), f.quantity(t, f.branch.ID))
}

func TestRestore_TransferReversesBothLegs(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx()

	f.stockIn(t, 10)
	_, err := f.moveProc.Transfer(ctx, movement.TransferRequest{
		ProductID:    f.product.ID,
		FromBranchID: f.branch.ID,
		ToBranchID:   f.branch2.ID,
		Quantity:     4,
	})
	require.NoError(t, err)
	require.Equal(t, types.Quantity(6), f.quantity(t, f.branch.ID))
	require.Equal(t, types.Quantity(4), f.quantity(t, f.branch2.ID))

	transferType := entity.ActivityTransfer
	entries, err := f.actSvc.List(ctx, activity.ListFilter{Type: &transferType})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = f.engine.Restore(ctx, restore.Request{ActivityID: entries[0].ID})
	require.NoError(t, err)

	assert.Equal(t, types.Quantity(10), f.quantity(t, f.branch.ID))
	assert.Equal(t, types.Quantity(0), f.quantity(t, f.branch2.ID))
}

func TestRestore_DryRunIsPure(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx()

	f.stockIn(t, 5)
	_, sellActivity := f.sellAndRecord(t, 2)

	result, err := f.engine.Restore(ctx, restore.Request{
		ActivityID: sellActivity.ID,
		DryRun:     true,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Preview)
	assert.Nil(t, result.Restored)
	assert.Equal(t, entity.ActivitySell, result.Preview.Type)
	assert.NotEmpty(t, result.Preview.Steps)

	// Nothing changed.
	assert.Equal(t, types.Quantity(3), f.quantity(t, f.branch.ID))
	original, err := f.actSvc.Get(ctx, sellActivity.ID)
	require.NoError(t, err)
	assert.False(t, original.Restored())

	// The real restore still goes through afterwards.
	_, err = f.engine.Restore(ctx, restore.Request{ActivityID: sellActivity.ID})
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(5), f.quantity(t, f.branch.ID))
}

func TestRestore_RestoreOfRestoreRejected(t *testing.T) {
	f := newFixture(t)
	ctx := managerCtx()

	f.stockIn(t, 5)
	_, sellActivity := f.sellAndRecord(t, 2)

	result, err := f.engine.Restore(ctx, restore.Request{ActivityID: sellActivity.ID})
	require.NoError(t, err)

	_, err = f.engine.Restore(ctx, restore.Request{ActivityID: result.Restored.ID})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestRestore_RoleChecks(t *testing.T) {
	f := newFixture(t)

	f.stockIn(t, 5)
	_, sellActivity := f.sellAndRecord(t, 2)

	// Cashiers may not restore.
	cashier := appctx.WithActor(context.Background(), &appctx.Actor{
		ID:   id.New(),
		Role: appctx.RoleCashier,
	})
	_, err := f.engine.Restore(cashier, restore.Request{ActivityID: sellActivity.ID})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)

	// No actor at all.
	_, err = f.engine.Restore(context.Background(), restore.Request{ActivityID: sellActivity.ID})
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestRestore_UnknownActivity(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Restore(managerCtx(), restore.Request{ActivityID: id.New()})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

package sales_test

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
	proc      *sales.Processor
	saleRepo  sales.Repository

	branch   entity.Branch
	productA entity.Product
	productB entity.Product
}

func newFixture(t *testing.T, writer ledger.BalanceWriter) *fixture {
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
		productA:  entity.Product{ID: id.New(), Name: "Coffee", SKU: "COF-1", Price: 450, Active: true},
		productB:  entity.Product{ID: id.New(), Name: "Tea", SKU: "TEA-1", Price: 300, Active: true},
	}
	mem.SeedBranch(f.branch)
	mem.SeedProduct(f.productA)
	mem.SeedProduct(f.productB)

	f.proc = sales.NewProcessor(
		mem, saleRepo, catalogSvc, store, ledgerSvc,
		numbers, recorder, scope,
		sales.ProcessorConfig{Writer: writer},
	)
	return f
}

func (f *fixture) ctx() context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{
		ID:   id.New(),
		Role: appctx.RoleCashier,
	})
}

func (f *fixture) triple(p entity.Product) entity.Triple {
	return entity.Triple{ProductID: p.ID, BranchID: f.branch.ID}
}

func (f *fixture) stock(t *testing.T, p entity.Product, qty types.Quantity) {
	t.Helper()
	_, err := f.store.Adjust(context.Background(), f.triple(p), qty)
	require.NoError(t, err)
}

// stockViaLedger seeds stock the way WriterLedger mode expects: an "in"
// movement with balance recompute, so the ledger stays the source of truth.
func (f *fixture) stockViaLedger(t *testing.T, p entity.Product, qty types.Quantity) {
	t.Helper()
	rec := entity.NewMovementRecord(
		f.triple(p), entity.MovementIn, qty, "initial stock",
		id.New(), entity.ReferenceManual, nil,
	)
	err := f.ledgerSvc.Append(context.Background(), &rec, ledger.AppendOptions{RecomputeBalance: true})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, p entity.Product) types.Quantity {
	t.Helper()
	qty, err := f.store.Quantity(context.Background(), f.triple(p))
	require.NoError(t, err)
	return qty
}

func TestSell_Commits(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()
	f.stock(t, f.productA, 10)
	f.stock(t, f.productB, 10)

	sale, err := f.proc.Sell(ctx, sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCash,
		Lines: []sales.SellLine{
			{ProductID: f.productA.ID, Quantity: 2, UnitPrice: 450},
			{ProductID: f.productB.ID, Quantity: 3, UnitPrice: 300},
		},
		Discount: 100,
	})
	require.NoError(t, err)

	assert.Equal(t, "POS-2026-00001", sale.Number)
	assert.Equal(t, types.MinorUnits(1800), sale.Subtotal)
	assert.Equal(t, types.MinorUnits(1700), sale.Total)

	assert.Equal(t, types.Quantity(8), f.quantity(t, f.productA))
	assert.Equal(t, types.Quantity(7), f.quantity(t, f.productB))

	// Both decrements appear in the ledger, linked to the sale.
	refType := entity.ReferenceSale
	records, err := f.ledgerSvc.History(ctx, ledger.HistoryFilter{ReferenceType: &refType})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, entity.MovementOut, rec.MovementType)
		require.NotNil(t, rec.ReferenceID)
		assert.Equal(t, sale.ID, *rec.ReferenceID)
	}

	// Lines round-trip.
	got, lines, err := f.proc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.Number, got.Number)
	require.Len(t, lines, 2)
	assert.Equal(t, types.MinorUnits(900), lines[0].LineTotal)
}

func TestSell_QueuesActivityAfterCommit(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()
	f.stock(t, f.productA, 5)

	sale, err := f.proc.Sell(ctx, sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCard,
		Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 1, UnitPrice: 450}},
	})
	require.NoError(t, err)

	// Close drains the queue.
	f.recorder.Close()

	entries, err := f.actSvc.List(context.Background(), activity.ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ActivitySell, entries[0].Type)
	require.NotNil(t, entries[0].ReferenceID)
	assert.Equal(t, sale.ID, *entries[0].ReferenceID)

	delta, err := activity.UnmarshalDelta[activity.SellDelta](entries[0].Delta)
	require.NoError(t, err)
	assert.Equal(t, sale.Number, delta.Number)
	require.Len(t, delta.Items, 1)
	assert.Equal(t, f.productA.ID, delta.Items[0].ProductID)
}

func TestSell_InsufficientStockAbortsWholeSale(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()
	f.stock(t, f.productA, 10)
	f.stock(t, f.productB, 1)

	_, err := f.proc.Sell(ctx, sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCash,
		Lines: []sales.SellLine{
			{ProductID: f.productA.ID, Quantity: 2, UnitPrice: 450},
			{ProductID: f.productB.ID, Quantity: 5, UnitPrice: 300},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// The error names the offending product.
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, f.productB.ID.String(), appErr.Details["product_id"])

	// Nothing committed: the first line's decrement rolled back too.
	assert.Equal(t, types.Quantity(10), f.quantity(t, f.productA))
	assert.Equal(t, types.Quantity(1), f.quantity(t, f.productB))

	records, err := f.ledgerSvc.History(ctx, ledger.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	// No activity either.
	f.recorder.Close()
	entries, err := f.actSvc.List(context.Background(), activity.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSell_SecondSaleAgainstDepletedStock(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()
	f.stock(t, f.productA, 5)

	sell := func() error {
		_, err := f.proc.Sell(ctx, sales.SellRequest{
			BranchID:      f.branch.ID,
			PaymentMethod: entity.PaymentCash,
			Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 3, UnitPrice: 450}},
		})
		return err
	}

	require.NoError(t, sell())
	assert.Equal(t, types.Quantity(2), f.quantity(t, f.productA))

	err := sell()
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, types.Quantity(2), f.quantity(t, f.productA))
}

func TestSell_LinesProcessedInSubmissionOrder(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()
	// Both lines would fail; the first one must be reported.

	_, err := f.proc.Sell(ctx, sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCash,
		Lines: []sales.SellLine{
			{ProductID: f.productB.ID, Quantity: 5, UnitPrice: 300},
			{ProductID: f.productA.ID, Quantity: 5, UnitPrice: 450},
		},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, f.productB.ID.String(), appErr.Details["product_id"])
}

func TestSell_WriterLedgerMode(t *testing.T) {
	f := newFixture(t, ledger.WriterLedger)
	ctx := f.ctx()
	f.stockViaLedger(t, f.productA, 10)

	sale, err := f.proc.Sell(ctx, sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCash,
		Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 4, UnitPrice: 450}},
	})
	require.NoError(t, err)
	require.NotNil(t, sale)

	// Ledger recompute is the single balance writer; the quantity must
	// have moved exactly once.
	assert.Equal(t, types.Quantity(6), f.quantity(t, f.productA))
}

func TestSell_WriterLedgerInsufficient(t *testing.T) {
	f := newFixture(t, ledger.WriterLedger)
	ctx := f.ctx()
	f.stockViaLedger(t, f.productA, 2)

	_, err := f.proc.Sell(ctx, sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCash,
		Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 3, UnitPrice: 450}},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, types.Quantity(2), f.quantity(t, f.productA))
}

func TestSell_Validation(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	ctx := f.ctx()

	cases := []struct {
		name string
		req  sales.SellRequest
	}{
		{
			name: "no lines",
			req:  sales.SellRequest{BranchID: f.branch.ID, PaymentMethod: entity.PaymentCash},
		},
		{
			name: "unknown payment method",
			req: sales.SellRequest{
				BranchID:      f.branch.ID,
				PaymentMethod: "crypto",
				Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 1, UnitPrice: 100}},
			},
		},
		{
			name: "negative discount",
			req: sales.SellRequest{
				BranchID:      f.branch.ID,
				PaymentMethod: entity.PaymentCash,
				Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 1, UnitPrice: 100}},
				Discount:      -1,
			},
		},
		{
			name: "zero quantity line",
			req: sales.SellRequest{
				BranchID:      f.branch.ID,
				PaymentMethod: entity.PaymentCash,
				Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 0, UnitPrice: 100}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.proc.Sell(ctx, tc.req)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestSell_RequiresActor(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	f.stock(t, f.productA, 5)

	_, err := f.proc.Sell(context.Background(), sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCash,
		Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 1, UnitPrice: 100}},
	})
	require.Error(t, err)
}

func TestSell_BranchScope(t *testing.T) {
	f := newFixture(t, ledger.WriterService)
	f.stock(t, f.productA, 5)

	homeBranch := id.New()
	ctx := appctx.WithActor(context.Background(), &appctx.Actor{
		ID:       id.New(),
		Role:     appctx.RoleCashier,
		BranchID: &homeBranch,
	})

	_, err := f.proc.Sell(ctx, sales.SellRequest{
		BranchID:      f.branch.ID,
		PaymentMethod: entity.PaymentCash,
		Lines:         []sales.SellLine{{ProductID: f.productA.ID, Quantity: 1, UnitPrice: 100}},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, ledger.WriterService)

	_, _, err := f.proc.Get(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

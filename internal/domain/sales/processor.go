package sales

import (
	"context"
	"fmt"
	"time"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/security"
	"posledger/internal/core/tx"
	"posledger/internal/core/types"
	"posledger/internal/domain/activity"
	"posledger/internal/domain/catalog"
	"posledger/internal/domain/inventory"
	"posledger/internal/domain/ledger"
	"posledger/pkg/numerator"
)

// SellLine is one requested line of a sale.
type SellLine struct {
	ProductID   id.ID
	VariationID *id.ID
	Quantity    types.Quantity
	UnitPrice   types.MinorUnits
}

// SellRequest is a basket of lines sold at one branch.
type SellRequest struct {
	BranchID      id.ID
	CustomerID    *id.ID
	PaymentMethod entity.PaymentMethod
	Lines         []SellLine
	Discount      types.MinorUnits
}

// Processor commits sale transactions. Stock decrements, the sale rows and
// the ledger movements share one transaction; the sell activity entry is
// queued after commit and never fails the sale.
type Processor struct {
	txm      tx.Manager
	sales    Repository
	catalog  *catalog.Service
	store    *inventory.Store
	ledger   *ledger.Service
	numbers  *numerator.Service
	recorder *activity.Recorder
	scope    *security.Scope
	writer   ledger.BalanceWriter
}

type ProcessorConfig struct {
	Writer ledger.BalanceWriter
}

func NewProcessor(
	txm tx.Manager,
	sales Repository,
	cat *catalog.Service,
	store *inventory.Store,
	led *ledger.Service,
	numbers *numerator.Service,
	recorder *activity.Recorder,
	scope *security.Scope,
	cfg ProcessorConfig,
) *Processor {
	writer := cfg.Writer
	if writer == "" {
		writer = ledger.WriterService
	}
	return &Processor{
		txm:      txm,
		sales:    sales,
		catalog:  cat,
		store:    store,
		ledger:   led,
		numbers:  numbers,
		recorder: recorder,
		scope:    scope,
		writer:   writer,
	}
}

// Sell commits a sale. Lines are processed in submission order; the first
// line without sufficient stock aborts the whole transaction and names the
// offending product. On success the committed sale is returned and a sell
// activity entry is queued.
func (p *Processor) Sell(ctx context.Context, req SellRequest) (*entity.SaleTransaction, error) {
	if err := p.validateRequest(req); err != nil {
		return nil, err
	}
	if err := p.scope.RequireBranch(ctx, req.BranchID); err != nil {
		return nil, err
	}
	actor := appctx.GetActor(ctx)

	var (
		sale  *entity.SaleTransaction
		delta *activity.SellDelta
	)
	err := p.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		sale, delta, err = p.sell(txCtx, actor, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Post-commit, best effort.
	p.queueActivity(ctx, actor, sale, delta)
	return sale, nil
}

func (p *Processor) sell(ctx context.Context, actor *appctx.Actor, req SellRequest) (*entity.SaleTransaction, *activity.SellDelta, error) {
	if _, err := p.catalog.RequireBranch(ctx, req.BranchID); err != nil {
		return nil, nil, err
	}

	number, err := p.numbers.Next(ctx, numerator.SaleSequence)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	sale := &entity.SaleTransaction{
		ID:            id.New(),
		Number:        number,
		BranchID:      req.BranchID,
		CashierID:     actor.ID,
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
		CreatedAt:     now,
	}

	lines := make([]*entity.SaleLine, 0, len(req.Lines))
	movements := make([]*entity.MovementRecord, 0, len(req.Lines))
	items := make([]activity.SellItem, 0, len(req.Lines))
	var subtotal types.MinorUnits

	for _, line := range req.Lines {
		if _, err := p.catalog.GetProduct(ctx, line.ProductID); err != nil {
			return nil, nil, err
		}
		variationID, err := p.catalog.ResolveVariation(ctx, line.ProductID, line.VariationID)
		if err != nil {
			return nil, nil, err
		}
		triple := entity.Triple{ProductID: line.ProductID, VariationID: variationID, BranchID: req.BranchID}

		if p.writer == ledger.WriterService {
			if _, err := p.store.Adjust(ctx, triple, line.Quantity.Neg()); err != nil {
				return nil, nil, err
			}
		}

		lineTotal := types.MinorUnits(int64(line.Quantity) * int64(line.UnitPrice))
		subtotal += lineTotal
		lines = append(lines, &entity.SaleLine{
			ID:          id.New(),
			SaleID:      sale.ID,
			ProductID:   line.ProductID,
			VariationID: variationID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   lineTotal,
		})
		rec := entity.NewMovementRecord(
			triple, entity.MovementOut, line.Quantity,
			fmt.Sprintf("sale %s", number),
			actor.ID, entity.ReferenceSale, &sale.ID,
		)
		movements = append(movements, &rec)
		items = append(items, activity.SellItem{
			ProductID:   line.ProductID,
			VariationID: variationID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	sale.Subtotal = subtotal
	sale.Total = subtotal - req.Discount

	if err := p.sales.CreateSale(ctx, sale); err != nil {
		return nil, nil, err
	}
	if err := p.sales.SaveLines(ctx, lines); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.AppendBatch(ctx, movements, ledger.AppendOptions{
		RecomputeBalance: p.writer == ledger.WriterLedger,
	}); err != nil {
		return nil, nil, err
	}

	delta := &activity.SellDelta{
		SaleID:      sale.ID,
		Number:      sale.Number,
		Items:       items,
		TotalAmount: sale.Total,
		Discount:    sale.Discount,
	}
	return sale, delta, nil
}

func (p *Processor) queueActivity(ctx context.Context, actor *appctx.Actor, sale *entity.SaleTransaction, delta *activity.SellDelta) {
	raw, err := activity.MarshalDelta(delta)
	if err != nil {
		return
	}
	branchID := sale.BranchID
	refID := sale.ID
	p.recorder.Enqueue(ctx, &entity.Activity{
		Type:          entity.ActivitySell,
		Title:         fmt.Sprintf("Sale %s", sale.Number),
		Description:   fmt.Sprintf("%d line(s), total %s", len(delta.Items), types.FormatMoney(sale.Total)),
		Delta:         raw,
		ActorID:       actor.ID,
		BranchID:      &branchID,
		ReferenceType: string(entity.ReferenceSale),
		ReferenceID:   &refID,
	})
}

// Get returns a sale with its lines.
func (p *Processor) Get(ctx context.Context, saleID id.ID) (*entity.SaleTransaction, []entity.SaleLine, error) {
	sale, found, err := p.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, apperror.NewNotFound("sale", saleID)
	}
	lines, err := p.sales.GetLines(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	return sale, lines, nil
}

func (p *Processor) validateRequest(req SellRequest) error {
	if len(req.Lines) == 0 {
		return apperror.NewValidation("sale must contain at least one line")
	}
	if req.Discount < 0 {
		return apperror.NewValidation("discount must not be negative")
	}
	switch req.PaymentMethod {
	case entity.PaymentCash, entity.PaymentCard, entity.PaymentTransfer:
	default:
		return apperror.NewValidation(fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
	for i, line := range req.Lines {
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation(fmt.Sprintf("line %d: quantity must be positive", i+1))
		}
		if line.UnitPrice < 0 {
			return apperror.NewValidation(fmt.Sprintf("line %d: unit price must not be negative", i+1))
		}
	}
	return nil
}

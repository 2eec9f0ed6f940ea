// Package movement applies manual stock adjustments and branch transfers.
package movement

import (
	"context"
	"fmt"

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

// ApplyRequest is one manual stock movement.
type ApplyRequest struct {
	ProductID   id.ID
	VariationID *id.ID
	BranchID    id.ID
	Type        entity.MovementType
	Quantity    types.Quantity
	Reason      string
}

// TransferRequest moves stock between two branches.
type TransferRequest struct {
	ProductID    id.ID
	VariationID  *id.ID
	FromBranchID id.ID
	ToBranchID   id.ID
	Quantity     types.Quantity
	Reason       string
}

// Processor applies stock movements. The quantity update, the ledger append
// and the activity entry share one transaction.
//
// Exactly one writer of InventoryRow per call: with WriterService the
// processor adjusts the quantity store and ledger recompute stays off; with
// WriterLedger the append recomputes the balance and the processor performs
// no adjust of its own.
type Processor struct {
	txm      tx.Manager
	catalog  *catalog.Service
	store    *inventory.Store
	ledger   *ledger.Service
	activity *activity.Service
	numbers  *numerator.Service
	scope    *security.Scope
	writer   ledger.BalanceWriter
}

type ProcessorConfig struct {
	Writer ledger.BalanceWriter
}

func NewProcessor(
	txm tx.Manager,
	cat *catalog.Service,
	store *inventory.Store,
	led *ledger.Service,
	act *activity.Service,
	numbers *numerator.Service,
	scope *security.Scope,
	cfg ProcessorConfig,
) *Processor {
	writer := cfg.Writer
	if writer == "" {
		writer = ledger.WriterService
	}
	return &Processor{
		txm:      txm,
		catalog:  cat,
		store:    store,
		ledger:   led,
		activity: act,
		numbers:  numbers,
		scope:    scope,
		writer:   writer,
	}
}

// Apply executes one manual stock movement.
func (p *Processor) Apply(ctx context.Context, req ApplyRequest) (*entity.MovementRecord, error) {
	if err := validateApply(req); err != nil {
		return nil, err
	}
	if err := p.scope.RequireBranch(ctx, req.BranchID); err != nil {
		return nil, err
	}
	actor := appctx.GetActor(ctx)

	var rec *entity.MovementRecord
	err := p.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := p.catalog.RequireBranch(txCtx, req.BranchID); err != nil {
			return err
		}
		if _, err := p.catalog.GetProduct(txCtx, req.ProductID); err != nil {
			return err
		}
		variationID, err := p.catalog.ResolveVariation(txCtx, req.ProductID, req.VariationID)
		if err != nil {
			return err
		}
		triple := entity.Triple{ProductID: req.ProductID, VariationID: variationID, BranchID: req.BranchID}

		delta := req.Quantity
		if req.Type == entity.MovementOut {
			delta = delta.Neg()
		}
		if p.writer == ledger.WriterService {
			if _, err := p.store.Adjust(txCtx, triple, delta); err != nil {
				return err
			}
		}

		m := entity.NewMovementRecord(triple, req.Type, req.Quantity, req.Reason, actor.ID, entity.ReferenceManual, nil)
		if err := p.ledger.Append(txCtx, &m, ledger.AppendOptions{
			RecomputeBalance: p.writer == ledger.WriterLedger,
		}); err != nil {
			return err
		}
		rec = &m

		return p.recordActivity(txCtx, actor, triple, &m)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Processor) recordActivity(ctx context.Context, actor *appctx.Actor, triple entity.Triple, m *entity.MovementRecord) error {
	actType := entity.ActivityStockIn
	title := "Stock in"
	if m.MovementType == entity.MovementOut {
		actType = entity.ActivityStockOut
		title = "Stock out"
	}
	raw, err := activity.MarshalDelta(&activity.StockMoveDelta{
		MovementID:  m.ID,
		ProductID:   triple.ProductID,
		VariationID: triple.VariationID,
		Quantity:    m.Quantity,
		Reason:      m.Reason,
	})
	if err != nil {
		return err
	}
	branchID := triple.BranchID
	refID := m.ID
	return p.activity.Record(ctx, &entity.Activity{
		Type:          actType,
		Title:         fmt.Sprintf("%s: %d unit(s)", title, m.Quantity.Int64()),
		Description:   m.Reason,
		Delta:         raw,
		ActorID:       actor.ID,
		BranchID:      &branchID,
		ReferenceType: string(entity.ReferenceManual),
		ReferenceID:   &refID,
	})
}

// Transfer moves stock from one branch to another: an out movement at the
// source and an in movement at the destination, in one transaction. The
// source decrement fails the whole transfer when stock is insufficient.
func (p *Processor) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if err := validateTransfer(req); err != nil {
		return "", err
	}
	if err := p.scope.RequireBranch(ctx, req.FromBranchID); err != nil {
		return "", err
	}
	if err := p.scope.RequireBranch(ctx, req.ToBranchID); err != nil {
		return "", err
	}
	actor := appctx.GetActor(ctx)

	var number string
	err := p.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		for _, branchID := range []id.ID{req.FromBranchID, req.ToBranchID} {
			if _, err := p.catalog.RequireBranch(txCtx, branchID); err != nil {
				return err
			}
		}
		if _, err := p.catalog.GetProduct(txCtx, req.ProductID); err != nil {
			return err
		}
		variationID, err := p.catalog.ResolveVariation(txCtx, req.ProductID, req.VariationID)
		if err != nil {
			return err
		}

		number, err = p.numbers.Next(txCtx, numerator.TransferSequence)
		if err != nil {
			return err
		}
		reason := req.Reason
		if reason == "" {
			reason = fmt.Sprintf("transfer %s", number)
		}

		src := entity.Triple{ProductID: req.ProductID, VariationID: variationID, BranchID: req.FromBranchID}
		dst := entity.Triple{ProductID: req.ProductID, VariationID: variationID, BranchID: req.ToBranchID}

		if p.writer == ledger.WriterService {
			if _, err := p.store.Adjust(txCtx, src, req.Quantity.Neg()); err != nil {
				return err
			}
			if _, err := p.store.Adjust(txCtx, dst, req.Quantity); err != nil {
				return err
			}
		}

		out := entity.NewMovementRecord(src, entity.MovementOut, req.Quantity, reason, actor.ID, entity.ReferenceTransfer, nil)
		in := entity.NewMovementRecord(dst, entity.MovementIn, req.Quantity, reason, actor.ID, entity.ReferenceTransfer, nil)
		if err := p.ledger.AppendBatch(txCtx, []*entity.MovementRecord{&out, &in}, ledger.AppendOptions{
			RecomputeBalance: p.writer == ledger.WriterLedger,
		}); err != nil {
			return err
		}

		raw, err := activity.MarshalDelta(&activity.TransferDelta{
			ProductID:    req.ProductID,
			VariationID:  variationID,
			Quantity:     req.Quantity,
			FromBranchID: req.FromBranchID,
			ToBranchID:   req.ToBranchID,
		})
		if err != nil {
			return err
		}
		branchID := req.FromBranchID
		refID := out.ID
		return p.activity.Record(txCtx, &entity.Activity{
			Type:          entity.ActivityTransfer,
			Title:         fmt.Sprintf("Transfer %s", number),
			Description:   reason,
			Delta:         raw,
			ActorID:       actor.ID,
			BranchID:      &branchID,
			ReferenceType: string(entity.ReferenceTransfer),
			ReferenceID:   &refID,
		})
	})
	if err != nil {
		return "", err
	}
	return number, nil
}

func validateApply(req ApplyRequest) error {
	if req.Type != entity.MovementIn && req.Type != entity.MovementOut {
		return apperror.NewValidation(fmt.Sprintf("unknown movement type %q", req.Type))
	}
	if !req.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be a positive integer")
	}
	if req.Reason == "" {
		return apperror.NewValidation("reason is required")
	}
	if id.IsNil(req.BranchID) {
		return apperror.NewValidation("branch_id must reference a concrete branch")
	}
	return nil
}

func validateTransfer(req TransferRequest) error {
	if !req.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be a positive integer")
	}
	if id.IsNil(req.FromBranchID) || id.IsNil(req.ToBranchID) {
		return apperror.NewValidation("both branches must be concrete")
	}
	if req.FromBranchID == req.ToBranchID {
		return apperror.NewValidation("transfer requires two distinct branches")
	}
	return nil
}

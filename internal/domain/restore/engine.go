// Package restore computes and applies the inverse of a recorded activity.
package restore

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
	"posledger/internal/domain/inventory"
	"posledger/internal/domain/ledger"
	"posledger/internal/domain/sales"
	"posledger/pkg/logger"
)

// Request asks for a past activity to be reversed.
type Request struct {
	ActivityID id.ID
	Reason     string
	DryRun     bool
}

// Step is one reversal action in a preview.
type Step struct {
	Description string         `json:"description"`
	Triple      *entity.Triple `json:"triple,omitempty"`
	Delta       int64          `json:"delta,omitempty"`
}

// Preview describes what a restore would do without applying it.
type Preview struct {
	ActivityID id.ID               `json:"activityId"`
	Type       entity.ActivityType `json:"type"`
	Steps      []Step              `json:"steps"`
}

// Result of an applied restore.
type Result struct {
	Restored *entity.Activity
	Preview  *Preview
}

// Engine reverses activities through the same transactional primitives the
// processors use. A restore is itself an audited event: applying the
// inverse and recording the restore activity happen in one transaction, so
// a failure at any point leaves no partial effect.
type Engine struct {
	txm      tx.Manager
	activity *activity.Service
	store    *inventory.Store
	ledger   *ledger.Service
	sales    sales.Repository
	scope    *security.Scope
	writer   ledger.BalanceWriter
}

type EngineConfig struct {
	Writer ledger.BalanceWriter
}

func NewEngine(
	txm tx.Manager,
	act *activity.Service,
	store *inventory.Store,
	led *ledger.Service,
	salesRepo sales.Repository,
	scope *security.Scope,
	cfg EngineConfig,
) *Engine {
	writer := cfg.Writer
	if writer == "" {
		writer = ledger.WriterService
	}
	return &Engine{
		txm:      txm,
		activity: act,
		store:    store,
		ledger:   led,
		sales:    salesRepo,
		scope:    scope,
		writer:   writer,
	}
}

// Restore validates the request, then either previews (dry run) or applies
// the inverse and records it. Dry run never writes anything.
func (e *Engine) Restore(ctx context.Context, req Request) (*Result, error) {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if actor.Role != appctx.RoleOwner && actor.Role != appctx.RoleManager {
		return nil, apperror.NewForbidden("restore requires owner or manager role")
	}

	original, err := e.activity.Get(ctx, req.ActivityID)
	if err != nil {
		return nil, err
	}
	if !original.Type.Restorable() {
		return nil, apperror.NewValidation(fmt.Sprintf("activity type %q cannot be restored", original.Type))
	}
	if original.Restored() {
		return nil, apperror.NewRestoreConflict("activity has already been restored")
	}
	if original.BranchID != nil {
		if err := e.scope.RequireBranch(ctx, *original.BranchID); err != nil {
			return nil, err
		}
	}

	if req.DryRun {
		p, err := e.plan(ctx, original)
		if err != nil {
			return nil, err
		}
		return &Result{Preview: p.preview(original)}, nil
	}

	var restored *entity.Activity
	err = e.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		// Re-read and plan under the transaction so a concurrent restore
		// of the same activity loses cleanly and the inverse, including
		// the sale-exists check, is built against the state being
		// modified.
		current, err := e.activity.Get(txCtx, original.ID)
		if err != nil {
			return err
		}
		if current.Restored() {
			return apperror.NewRestoreConflict("activity has already been restored")
		}

		p, err := e.plan(txCtx, current)
		if err != nil {
			return err
		}
		if err := e.apply(txCtx, actor, p); err != nil {
			return err
		}
		restored, err = e.record(txCtx, actor, current, p, req.Reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "activity restored",
		"activity_id", original.ID.String(),
		"restore_id", restored.ID.String(),
		"type", string(original.Type),
	)
	return &Result{Restored: restored}, nil
}

// plan builds the inverse of the activity's delta. Pure: reads only.
func (e *Engine) plan(ctx context.Context, original *entity.Activity) (*plan, error) {
	switch original.Type {
	case entity.ActivitySell:
		return e.planSell(ctx, original)
	case entity.ActivityStockIn, entity.ActivityStockOut:
		return e.planStockMove(original)
	case entity.ActivityTransfer:
		return e.planTransfer(original)
	default:
		return nil, apperror.NewValidation(fmt.Sprintf("no inverse defined for activity type %q", original.Type))
	}
}

// planSell re-adds every sold line and voids the sale row when it still
// exists.
func (e *Engine) planSell(ctx context.Context, original *entity.Activity) (*plan, error) {
	delta, err := activity.UnmarshalDelta[activity.SellDelta](original.Delta)
	if err != nil {
		return nil, err
	}
	if original.BranchID == nil {
		return nil, apperror.NewValidation("sell activity has no branch")
	}
	branchID := *original.BranchID

	p := &plan{original: original, delta: original.Delta}
	for _, item := range delta.Items {
		triple := entity.Triple{ProductID: item.ProductID, VariationID: item.VariationID, BranchID: branchID}
		p.movements = append(p.movements, inverseMovement{
			triple:   triple,
			typ:      entity.MovementIn,
			quantity: item.Quantity,
			reason:   fmt.Sprintf("restore of sale %s", delta.Number),
		})
	}

	if _, found, err := e.sales.GetByID(ctx, delta.SaleID); err != nil {
		return nil, err
	} else if found {
		saleID := delta.SaleID
		p.voidSale = &saleID
	}
	return p, nil
}

func (e *Engine) planStockMove(original *entity.Activity) (*plan, error) {
	delta, err := activity.UnmarshalDelta[activity.StockMoveDelta](original.Delta)
	if err != nil {
		return nil, err
	}
	if original.BranchID == nil {
		return nil, apperror.NewValidation("stock movement activity has no branch")
	}
	triple := entity.Triple{ProductID: delta.ProductID, VariationID: delta.VariationID, BranchID: *original.BranchID}

	inverse := entity.MovementOut
	if original.Type == entity.ActivityStockOut {
		inverse = entity.MovementIn
	}
	return &plan{
		original: original,
		delta:    original.Delta,
		movements: []inverseMovement{{
			triple:   triple,
			typ:      inverse,
			quantity: delta.Quantity,
			reason:   fmt.Sprintf("restore of %s", original.Type),
		}},
	}, nil
}

// planTransfer sends the stock back: out at the destination, in at the
// source.
func (e *Engine) planTransfer(original *entity.Activity) (*plan, error) {
	delta, err := activity.UnmarshalDelta[activity.TransferDelta](original.Delta)
	if err != nil {
		return nil, err
	}
	src := entity.Triple{ProductID: delta.ProductID, VariationID: delta.VariationID, BranchID: delta.FromBranchID}
	dst := entity.Triple{ProductID: delta.ProductID, VariationID: delta.VariationID, BranchID: delta.ToBranchID}
	reason := "restore of transfer"
	return &plan{
		original: original,
		delta:    original.Delta,
		movements: []inverseMovement{
			{triple: dst, typ: entity.MovementOut, quantity: delta.Quantity, reason: reason},
			{triple: src, typ: entity.MovementIn, quantity: delta.Quantity, reason: reason},
		},
	}, nil
}

// apply executes the planned inverse. An insufficient-stock failure means
// the state has drifted since the original activity and becomes a
// RestoreConflict.
func (e *Engine) apply(ctx context.Context, actor *appctx.Actor, p *plan) error {
	recs := make([]*entity.MovementRecord, 0, len(p.movements))
	for _, mv := range p.movements {
		if e.writer == ledger.WriterService {
			delta := mv.quantity
			if mv.typ == entity.MovementOut {
				delta = delta.Neg()
			}
			if _, err := e.store.Adjust(ctx, mv.triple, delta); err != nil {
				if apperror.IsInsufficientStock(err) {
					return apperror.NewRestoreConflict(fmt.Sprintf(
						"restoring would drive quantity negative for product %s", mv.triple.ProductID))
				}
				return err
			}
		}
		originalID := p.original.ID
		rec := entity.NewMovementRecord(mv.triple, mv.typ, mv.quantity, mv.reason, actor.ID, entity.ReferenceRestore, &originalID)
		recs = append(recs, &rec)
	}

	err := e.ledger.AppendBatch(ctx, recs, ledger.AppendOptions{
		RecomputeBalance: e.writer == ledger.WriterLedger,
	})
	if err != nil {
		if apperror.IsInsufficientStock(err) {
			return apperror.NewRestoreConflict("restoring would drive quantity negative")
		}
		return err
	}

	if p.voidSale != nil {
		if err := e.sales.MarkVoided(ctx, *p.voidSale); err != nil {
			return err
		}
	}
	return nil
}

// record writes the restore activity and stamps the original, still inside
// the transaction.
func (e *Engine) record(ctx context.Context, actor *appctx.Actor, original *entity.Activity, p *plan, reason string) (*entity.Activity, error) {
	raw, err := activity.MarshalDelta(&activity.RestoreDelta{
		RestoredActivityID: original.ID,
		RestoredType:       original.Type,
		Reason:             reason,
		Reversal:           p.delta,
	})
	if err != nil {
		return nil, err
	}

	originalID := original.ID
	restored := &entity.Activity{
		ID:            id.New(),
		Type:          entity.ActivityRestore,
		Title:         fmt.Sprintf("Restore of %s", original.Title),
		Description:   reason,
		Delta:         raw,
		ActorID:       actor.ID,
		BranchID:      original.BranchID,
		ReferenceType: string(entity.ReferenceRestore),
		ReferenceID:   &originalID,
	}
	if err := e.activity.Record(ctx, restored); err != nil {
		return nil, err
	}
	if err := e.markRestored(ctx, original.ID, restored.ID); err != nil {
		return nil, err
	}
	return restored, nil
}

func (e *Engine) markRestored(ctx context.Context, originalID, restoredBy id.ID) error {
	return e.activity.MarkRestored(ctx, originalID, restoredBy, time.Now().UTC())
}

type inverseMovement struct {
	triple   entity.Triple
	typ      entity.MovementType
	quantity types.Quantity
	reason   string
}

type plan struct {
	original  *entity.Activity
	delta     []byte
	movements []inverseMovement
	voidSale  *id.ID
}

func (p *plan) preview(original *entity.Activity) *Preview {
	pv := &Preview{ActivityID: original.ID, Type: original.Type}
	for _, mv := range p.movements {
		triple := mv.triple
		delta := mv.quantity.Int64()
		if mv.typ == entity.MovementOut {
			delta = -delta
		}
		pv.Steps = append(pv.Steps, Step{
			Description: mv.reason,
			Triple:      &triple,
			Delta:       delta,
		})
	}
	if p.voidSale != nil {
		pv.Steps = append(pv.Steps, Step{Description: "mark sale voided"})
	}
	pv.Steps = append(pv.Steps, Step{Description: "write restore activity record"})
	return pv
}

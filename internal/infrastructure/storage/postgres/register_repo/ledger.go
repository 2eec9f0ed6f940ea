package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"posledger/internal/core/apperror"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/types"
	"posledger/internal/domain/ledger"
	"posledger/internal/infrastructure/storage/postgres"
)

var movementColumns = []string{
	"id", "product_id", "variation_id", "branch_id",
	"movement_type", "quantity", "reason",
	"actor_id", "reference_type", "reference_id", "created_at",
}

// LedgerRepo implements ledger.Repository. Movements are insert-only; when
// RecomputeBalance is requested the affected balance row is rebuilt from
// the full movement history in the same transaction.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LedgerRepo) Append(ctx context.Context, rec *entity.MovementRecord, opts ledger.AppendOptions) error {
	return r.AppendBatch(ctx, []*entity.MovementRecord{rec}, opts)
}

func (r *LedgerRepo) AppendBatch(ctx context.Context, recs []*entity.MovementRecord, opts ledger.AppendOptions) error {
	if len(recs) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(recs))
		for _, m := range recs {
			rows = append(rows, []any{
				m.ID, m.ProductID, m.VariationID, m.BranchID,
				m.MovementType, m.Quantity, m.Reason,
				m.ActorID, m.ReferenceType, m.ReferenceID, m.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
	} else {
		q := r.builder.Insert(movementsTable).Columns(movementColumns...)
		for _, m := range recs {
			q = q.Values(
				m.ID, m.ProductID, m.VariationID, m.BranchID,
				m.MovementType, m.Quantity, m.Reason,
				m.ActorID, m.ReferenceType, m.ReferenceID, m.CreatedAt,
			)
		}
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("insert movements: %w", err)
		}
	}

	if opts.RecomputeBalance {
		for _, m := range recs {
			if err := r.recomputeBalance(ctx, m); err != nil {
				return err
			}
		}
	}
	return nil
}

const ensureBalanceSQL = `
	INSERT INTO inventory_balances (id, product_id, variation_id, branch_id, quantity, updated_at)
	VALUES ($1, $2, $3, $4, 0, $5)
	ON CONFLICT (product_id, COALESCE(variation_id, '00000000-0000-0000-0000-000000000000'::uuid), branch_id)
	DO NOTHING
`

const lockBalanceSQL = `
	SELECT id
	FROM inventory_balances
	WHERE product_id = $1
	  AND variation_id IS NOT DISTINCT FROM $2
	  AND branch_id = $3
	FOR UPDATE
`

// lockBalance takes the per-triple row lock, creating the row when this is
// the first movement for the triple.
func (r *LedgerRepo) lockBalance(ctx context.Context, triple entity.Triple) error {
	querier := r.txm.GetQuerier(ctx)
	_, err := querier.Exec(ctx, ensureBalanceSQL,
		id.New(), triple.ProductID, triple.VariationID, triple.BranchID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ensure balance row: %w", err)
	}
	var rowID id.ID
	err = querier.QueryRow(ctx, lockBalanceSQL,
		triple.ProductID, triple.VariationID, triple.BranchID).Scan(&rowID)
	if err != nil {
		return fmt.Errorf("lock balance row: %w", err)
	}
	return nil
}

// recomputeBalance rebuilds one balance row from the movement history. The
// row is locked before the sum so concurrent appends on the same triple
// serialize and each sum sees the other's committed movements. The rebuilt
// quantity must not be negative; a negative net means the append would
// overdraw the triple.
func (r *LedgerRepo) recomputeBalance(ctx context.Context, m *entity.MovementRecord) error {
	triple := m.Triple()
	if err := r.lockBalance(ctx, triple); err != nil {
		return err
	}

	net, err := r.SignedSum(ctx, triple)
	if err != nil {
		return err
	}
	if net.IsNegative() {
		return apperror.NewInsufficientStock(triple.ProductID.String(), net.Abs().Int64(), 0)
	}

	sql, args, err := r.recomputeUpdate(triple, net, m.MovementType == entity.MovementIn).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("recompute balance: %w", err)
	}
	return nil
}

// recomputeUpdate builds the balance rewrite. An in movement stamps
// last_restocked. Split out so the SQL shape can be asserted without a
// database.
func (r *LedgerRepo) recomputeUpdate(triple entity.Triple, net types.Quantity, restocked bool) squirrel.UpdateBuilder {
	now := time.Now().UTC()
	q := r.builder.Update(balancesTable).
		Set("quantity", net).
		Set("updated_at", now).
		Where(tripleEq(triple))
	if restocked {
		q = q.Set("last_restocked", now)
	}
	return q
}

// historyQuery builds the filtered history select. Split out so the SQL
// shape can be asserted without a database.
func (r *LedgerRepo) historyQuery(filter ledger.HistoryFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).From(movementsTable)

	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.VariationID != nil {
		q = q.Where(squirrel.Eq{"variation_id": *filter.VariationID})
	}
	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.MovementType != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.MovementType})
	}
	if filter.ReferenceType != nil {
		q = q.Where(squirrel.Eq{"reference_type": *filter.ReferenceType})
	}
	if filter.ReferenceID != nil {
		q = q.Where(squirrel.Eq{"reference_id": *filter.ReferenceID})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

func (r *LedgerRepo) History(ctx context.Context, filter ledger.HistoryFilter) ([]entity.MovementRecord, error) {
	sql, args, err := r.historyQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.MovementRecord
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return movements, nil
}

func (r *LedgerRepo) SignedSum(ctx context.Context, triple entity.Triple) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(
			SUM(CASE WHEN movement_type = 'in' THEN quantity ELSE -quantity END),
			0
		)
		FROM stock_movements
		WHERE product_id = $1
		  AND variation_id IS NOT DISTINCT FROM $2
		  AND branch_id = $3
	`

	var net int64
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, triple.ProductID, triple.VariationID, triple.BranchID).Scan(&net)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("calculate signed sum: %w", err)
	}
	return types.Quantity(net), nil
}

var _ ledger.Repository = (*LedgerRepo)(nil)

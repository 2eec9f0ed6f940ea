// Package activity_repo provides the PostgreSQL implementation of the
// activity log.
package activity_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/domain/activity"
	"posledger/internal/infrastructure/storage/postgres"
)

const activitiesTable = "activity_log"

// CompressionAlgo specifies the compression algorithm used for the delta
// payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// ActivityRepo implements activity.Repository. Large delta payloads are
// stored zstd-compressed; the column pair (delta, delta_compressed) holds
// exactly one of the two forms.
type ActivityRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	compressThreshold int // bytes
}

func NewActivityRepo(txm *postgres.TxManager) (*ActivityRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &ActivityRepo{
		txm:               txm,
		builder:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

func (r *ActivityRepo) Create(ctx context.Context, a *entity.Activity) error {
	delta := a.Delta
	var compressed []byte
	algo := CompressionNone
	if len(delta) > r.compressThreshold {
		compressed = r.encoder.EncodeAll(delta, nil)
		delta = nil
		algo = CompressionZstd
	}

	sql := `
		INSERT INTO activity_log (
			id, type, title, description,
			delta, delta_compressed, compression_algo,
			actor_id, branch_id, reference_type, reference_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, sql,
		a.ID, a.Type, a.Title, a.Description,
		delta, compressed, algo,
		a.ActorID, a.BranchID, a.ReferenceType, a.ReferenceID,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (r *ActivityRepo) Get(ctx context.Context, activityID id.ID) (*entity.Activity, bool, error) {
	sql := `
		SELECT id, type, title, description,
		       delta, delta_compressed, compression_algo,
		       actor_id, branch_id, reference_type, reference_id,
		       restored_by, restored_at, created_at, updated_at
		FROM activity_log
		WHERE id = $1
	`
	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, activityID)
	if err != nil {
		return nil, false, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	a, err := r.scanActivity(rows.Scan)
	if err != nil {
		return nil, false, err
	}
	return a, true, rows.Err()
}

func (r *ActivityRepo) List(ctx context.Context, filter activity.ListFilter) ([]entity.Activity, error) {
	q := r.builder.Select(
		"id", "type", "title", "description",
		"delta", "delta_compressed", "compression_algo",
		"actor_id", "branch_id", "reference_type", "reference_id",
		"restored_by", "restored_at", "created_at", "updated_at",
	).From(activitiesTable)

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.BranchID != nil {
		q = q.Where(squirrel.Eq{"branch_id": *filter.BranchID})
	}
	if filter.ActorID != nil {
		q = q.Where(squirrel.Eq{"actor_id": *filter.ActorID})
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

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var out []entity.Activity
	for rows.Next() {
		a, err := r.scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *ActivityRepo) UpdateText(ctx context.Context, activityID id.ID, patch activity.PatchFields) error {
	q := r.builder.Update(activitiesTable).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": activityID})
	if patch.Title != nil {
		q = q.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		q = q.Set("description", *patch.Description)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update activity text: %w", err)
	}
	return nil
}

func (r *ActivityRepo) MarkRestored(ctx context.Context, activityID, restoredBy id.ID, at time.Time) error {
	sql := `
		UPDATE activity_log
		SET restored_by = $1, restored_at = $2, updated_at = $2
		WHERE id = $3 AND restored_at IS NULL
	`
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, restoredBy, at, activityID)
	if err != nil {
		return fmt.Errorf("mark restored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("activity %s already restored", activityID)
	}
	return nil
}

func (r *ActivityRepo) scanActivity(scan func(dest ...any) error) (*entity.Activity, error) {
	var (
		a          entity.Activity
		compressed []byte
		algo       CompressionAlgo
	)
	err := scan(
		&a.ID, &a.Type, &a.Title, &a.Description,
		&a.Delta, &compressed, &algo,
		&a.ActorID, &a.BranchID, &a.ReferenceType, &a.ReferenceID,
		&a.RestoredBy, &a.RestoredAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan activity: %w", err)
	}

	if algo == CompressionZstd && len(compressed) > 0 {
		decompressed, err := r.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress delta: %w", err)
		}
		a.Delta = decompressed
	}
	return &a, nil
}

var _ activity.Repository = (*ActivityRepo)(nil)

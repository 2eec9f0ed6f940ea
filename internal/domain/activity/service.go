package activity

import (
	"context"
	"fmt"
	"time"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/pkg/logger"
)

// ListCache is a read-through cache for recent activity pages. A nil cache
// disables caching.
type ListCache interface {
	GetList(ctx context.Context, key string) ([]entity.Activity, bool)
	SetList(ctx context.Context, key string, items []entity.Activity)
	Invalidate(ctx context.Context)
}

type Service struct {
	repo  Repository
	cache ListCache
}

func NewService(repo Repository, cache ListCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Record writes a new activity entry inside the caller's transaction.
func (s *Service) Record(ctx context.Context, a *entity.Activity) error {
	if !a.Type.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown activity type %q", a.Type))
	}
	if len(a.Delta) == 0 {
		return apperror.NewValidation("activity delta must not be empty")
	}
	if id.IsNil(a.ID) {
		a.ID = id.New()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return nil
}

// Get returns one activity entry.
func (s *Service) Get(ctx context.Context, activityID id.ID) (*entity.Activity, error) {
	a, found, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.NewNotFound("activity", activityID)
	}
	return a, nil
}

// List returns activity entries newest first, via the cache when the filter
// is cacheable.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]entity.Activity, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	key := cacheKey(filter)
	if s.cache != nil && key != "" {
		if items, ok := s.cache.GetList(ctx, key); ok {
			return items, nil
		}
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && key != "" {
		s.cache.SetList(ctx, key, items)
	}
	return items, nil
}

// Patch updates the free-text fields of a recorded activity. Only owners may
// patch, and only title and description are mutable.
func (s *Service) Patch(ctx context.Context, activityID id.ID, patch PatchFields) (*entity.Activity, error) {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	if actor.Role != appctx.RoleOwner {
		return nil, apperror.NewForbidden("only owners may edit activity records")
	}
	if patch.IsEmpty() {
		return nil, apperror.NewValidation("no fields to update")
	}

	_, found, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.NewNotFound("activity", activityID)
	}
	if err := s.repo.UpdateText(ctx, activityID, patch); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	updated, _, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "activity record patched", "activity_id", activityID.String())
	return updated, nil
}

// MarkRestored stamps an entry with the restoring activity. Called by the
// restore engine inside its transaction.
func (s *Service) MarkRestored(ctx context.Context, activityID, restoredBy id.ID, at time.Time) error {
	if err := s.repo.MarkRestored(ctx, activityID, restoredBy, at); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	return nil
}

// RejectImmutable maps a patch of a frozen field to the proper error. Used
// by the transport layer when the request body carries fields beyond
// title/description.
func RejectImmutable(field string) error {
	return apperror.NewImmutable("activity", field)
}

func cacheKey(f ListFilter) string {
	// Only unfiltered first pages are worth caching.
	if f.Type != nil || f.BranchID != nil || f.ActorID != nil || f.From != nil || f.To != nil || f.Offset != 0 {
		return ""
	}
	return fmt.Sprintf("activities:recent:%d", f.Limit)
}

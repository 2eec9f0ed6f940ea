package security

import (
	"context"

	appctx "posledger/internal/core/context"
	"posledger/internal/core/apperror"
	"posledger/internal/core/id"
)

// Scope is the permission checker consumed by every mutating component.
// It wraps the actor from context and the deployment's branch policy.
type Scope struct {
	policy *BranchPolicy
}

// NewScope creates a Scope backed by the given branch policy.
func NewScope(policy *BranchPolicy) *Scope {
	return &Scope{policy: policy}
}

// CanAccessBranch reports whether the context's actor may operate on branchID.
func (s *Scope) CanAccessBranch(ctx context.Context, branchID id.ID) bool {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return false
	}

	actorBranch := ""
	if actor.BranchID != nil {
		actorBranch = actor.BranchID.String()
	}
	return s.policy.Allows(actor.Role, actorBranch, branchID.String())
}

// RequireBranch returns Forbidden unless the actor may operate on branchID.
func (s *Scope) RequireBranch(ctx context.Context, branchID id.ID) error {
	if appctx.GetActor(ctx) == nil {
		return apperror.NewUnauthorized("no authenticated actor")
	}
	if !s.CanAccessBranch(ctx, branchID) {
		return apperror.NewForbidden("branch access denied").
			WithDetail("branch_id", branchID.String())
	}
	return nil
}

// RequireRole returns Forbidden unless the actor has the given role.
func (s *Scope) RequireRole(ctx context.Context, role string) error {
	actor := appctx.GetActor(ctx)
	if actor == nil {
		return apperror.NewUnauthorized("no authenticated actor")
	}
	if actor.Role != role {
		return apperror.NewForbidden("role required").WithDetail("role", role)
	}
	return nil
}

// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"posledger/internal/core/id"
)

// Actor contains the authenticated actor for the current request.
// Always passed explicitly through context, never read from ambient state.
type Actor struct {
	ID   id.ID
	Role string

	// BranchID is the actor's home branch. Nil for actors that are not
	// bound to a single branch (owners, head office).
	BranchID *id.ID
}

// Roles known to the permission layer.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context, or nil if unauthenticated.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns the actor ID from context or the nil ID.
func GetActorID(ctx context.Context) id.ID {
	if a := GetActor(ctx); a != nil {
		return a.ID
	}
	return id.Nil()
}

// HasRole checks if the current actor has the given role.
func HasRole(ctx context.Context, role string) bool {
	a := GetActor(ctx)
	return a != nil && a.Role == role
}

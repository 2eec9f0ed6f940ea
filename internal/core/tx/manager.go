// Package tx defines the transaction contracts the domain depends on.
// Every processor runs one transaction per public operation; the pgx
// implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs a function inside a database transaction. An error from fn
// rolls back, nil commits. Nested calls join the transaction already in
// the context instead of opening a second one.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-only transactions for query paths: no row
// locks, and accidental writes fail instead of slipping through.
type ReadOnlyManager interface {
	Manager

	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

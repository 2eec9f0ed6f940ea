// Package memory provides an in-memory implementation of every repository,
// for tests and local development without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"posledger/internal/core/entity"
	"posledger/internal/core/id"
	"posledger/internal/core/tx"
)

// state is one consistent snapshot of the whole store.
type state struct {
	balances      map[string]entity.InventoryRow
	movements     []entity.MovementRecord
	sales         map[id.ID]entity.SaleTransaction
	saleLines     map[id.ID][]entity.SaleLine
	activities    map[id.ID]entity.Activity
	activityOrder []id.ID
	products      map[id.ID]entity.Product
	variations    map[id.ID]entity.Variation
	branches      map[id.ID]entity.Branch
	sequences     map[string]int64
}

func newState() *state {
	return &state{
		balances:   make(map[string]entity.InventoryRow),
		sales:      make(map[id.ID]entity.SaleTransaction),
		saleLines:  make(map[id.ID][]entity.SaleLine),
		activities: make(map[id.ID]entity.Activity),
		products:   make(map[id.ID]entity.Product),
		variations: make(map[id.ID]entity.Variation),
		branches:   make(map[id.ID]entity.Branch),
		sequences:  make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.balances {
		c.balances[k] = v
	}
	c.movements = append(c.movements, s.movements...)
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.saleLines {
		lines := make([]entity.SaleLine, len(v))
		copy(lines, v)
		c.saleLines[k] = lines
	}
	for k, v := range s.activities {
		c.activities[k] = v
	}
	c.activityOrder = append(c.activityOrder, s.activityOrder...)
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variations {
		c.variations[k] = v
	}
	for k, v := range s.branches {
		c.branches[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

// Store holds the committed state and serializes transactions: a running
// transaction holds the store lock, mutates a clone, and swaps it in on
// commit. A failed transaction discards the clone, leaving no partial
// effect.
type Store struct {
	mu        sync.Mutex
	committed *state
}

func NewStore() *Store {
	return &Store{committed: newState()}
}

type txStateKey struct{}

func txState(ctx context.Context) *state {
	if s, ok := ctx.Value(txStateKey{}).(*state); ok {
		return s
	}
	return nil
}

// RunInTransaction implements tx.Manager. Nested calls reuse the clone.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txState(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clone := s.committed.clone()
	txCtx := context.WithValue(ctx, txStateKey{}, clone)
	if err := fn(txCtx); err != nil {
		return err
	}
	s.committed = clone
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// read returns the state visible to the context: the transaction clone
// inside a transaction, the committed state otherwise.
func (s *Store) read(ctx context.Context) *state {
	if st := txState(ctx); st != nil {
		return st
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// write applies fn to the transaction clone when inside a transaction, or
// directly to the committed state (auto-commit) otherwise.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if st := txState(ctx); st != nil {
		return fn(st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.committed)
}

var _ tx.Manager = (*Store)(nil)
var _ tx.ReadOnlyManager = (*Store)(nil)

// Seed helpers for tests and local development.

func (s *Store) SeedProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed.products[p.ID] = p
}

func (s *Store) SeedVariation(v entity.Variation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed.variations[v.ID] = v
}

func (s *Store) SeedBranch(b entity.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed.branches[b.ID] = b
}

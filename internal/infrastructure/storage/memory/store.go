// Package memory is an in-process implementation of every ledger
// repository and of tx.Manager. A transaction holds the store mutex and
// works on live state; a failed transaction restores the snapshot taken
// when it began.
package memory

import (
	"context"
	"maps"
	"sync"

	"shopfloor/internal/core/id"
	"shopfloor/internal/core/tx"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/registers/finishedgoods"
	"shopfloor/internal/domain/registers/scrap"
	"shopfloor/internal/domain/stages"
	"shopfloor/pkg/logger"
)

// state is everything the store holds.
type state struct {
	orders    map[id.ID]*orders.Order
	stages    map[id.ID]*stages.Stage
	reports   map[id.ID]*production.Report
	movements []*finishedgoods.Movement
	balances  map[id.ID]*finishedgoods.Balance
	scrap     []*scrap.Record
	audit     []AuditEntry
}

func newState() *state {
	return &state{
		orders:   make(map[id.ID]*orders.Order),
		stages:   make(map[id.ID]*stages.Stage),
		reports:  make(map[id.ID]*production.Report),
		balances: make(map[id.ID]*finishedgoods.Balance),
	}
}

// clone deep-copies the state.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.stages {
		c.stages[k] = cloneStage(v)
	}
	for k, v := range s.reports {
		c.reports[k] = cloneReport(v)
	}
	for k, v := range s.balances {
		b := *v
		c.balances[k] = &b
	}
	c.movements = make([]*finishedgoods.Movement, len(s.movements))
	for i, m := range s.movements {
		mv := *m
		c.movements[i] = &mv
	}
	c.scrap = make([]*scrap.Record, len(s.scrap))
	for i, r := range s.scrap {
		rec := *r
		c.scrap[i] = &rec
	}
	c.audit = append([]AuditEntry(nil), s.audit...)
	return c
}

// Store holds the ledger in memory.
type Store struct {
	mu   sync.Mutex
	data *state
}

var _ tx.Manager = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

// inTx reports whether ctx belongs to a running transaction of this store.
func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	txCtx := context.WithValue(ctx, txKey{}, s)

	if err := fn(txCtx); err != nil {
		s.data = snapshot
		logger.Debug(ctx, "memory transaction rolled back", "error", err)
		return err
	}
	return nil
}

// ReadOnly runs fn in a transaction; writes are not prevented.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// view runs fn against the state, taking the lock unless ctx is already
// inside a transaction.
func (s *Store) view(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func cloneOrder(o *orders.Order) *orders.Order {
	c := *o
	if o.Deadline != nil {
		d := *o.Deadline
		c.Deadline = &d
	}
	return &c
}

func cloneStage(st *stages.Stage) *stages.Stage {
	c := *st
	c.Inputs = append([]stages.InputRequirement(nil), st.Inputs...)
	return &c
}

func cloneReport(r *production.Report) *production.Report {
	c := *r
	c.SourceConsumption = maps.Clone(r.SourceConsumption)
	if c.SourceConsumption == nil {
		c.SourceConsumption = production.Consumption{}
	}
	c.SourceBatchIDs = append([]id.ID(nil), r.SourceBatchIDs...)
	if r.ApprovedAt != nil {
		t := *r.ApprovedAt
		c.ApprovedAt = &t
	}
	if r.RejectedAt != nil {
		t := *r.RejectedAt
		c.RejectedAt = &t
	}
	return &c
}

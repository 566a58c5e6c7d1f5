// Package app assembles the ledger's domain services from a storage backend.
package app

import (
	"time"

	"shopfloor/internal/core/lock"
	"shopfloor/internal/core/numerator"
	"shopfloor/internal/core/tx"
	"shopfloor/internal/domain/adjustment"
	"shopfloor/internal/domain/allocation"
	"shopfloor/internal/domain/approval"
	"shopfloor/internal/domain/audit"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/progress"
	"shopfloor/internal/domain/registers/finishedgoods"
	"shopfloor/internal/domain/registers/scrap"
	"shopfloor/internal/domain/stages"
	"shopfloor/internal/domain/submission"
	memnumerator "shopfloor/internal/infrastructure/numerator"
	"shopfloor/internal/infrastructure/storage/memory"
)

// Backend is everything a storage implementation provides.
type Backend struct {
	TxManager     tx.Manager
	Orders        orders.Repository
	Stages        stages.Repository
	Reports       production.Repository
	FinishedGoods finishedgoods.Repository
	Scrap         scrap.Repository
	Audit         audit.Recorder
	Numerator     numerator.Generator
}

// Options are optional collaborators.
type Options struct {
	// Locker guards approvals across processes; nil means row locks only.
	Locker  lock.Locker
	LockTTL time.Duration
}

// Services are the domain services the HTTP layer calls.
type Services struct {
	Orders        *orders.Service
	Stages        *stages.Service
	Store         *production.Store
	Allocator     *allocation.Allocator
	Submission    *submission.Service
	Approval      *approval.Engine
	Adjustment    *adjustment.Service
	FinishedGoods *finishedgoods.Service
	Scrap         *scrap.Service
	Progress      *progress.Service
}

// NewServices wires the services over b.
func NewServices(b Backend, opts Options) *Services {
	rec := b.Audit
	if rec == nil {
		rec = audit.Nop{}
	}

	stageSvc := stages.NewService(b.Stages, b.Orders, b.TxManager, rec)
	store := production.NewStore(b.Reports, stageSvc, b.Numerator, b.TxManager, rec)
	orderSvc := orders.NewService(b.Orders, b.Numerator, b.TxManager, rec, store)
	alloc := allocation.NewAllocator(b.Stages, b.Reports)
	fg := finishedgoods.NewService(b.FinishedGoods)
	scrapSvc := scrap.NewService(b.Scrap)

	return &Services{
		Orders:     orderSvc,
		Stages:     stageSvc,
		Store:      store,
		Allocator:  alloc,
		Submission: submission.NewService(b.TxManager, store, stageSvc, b.Orders, alloc),
		Approval: approval.NewEngine(approval.Deps{
			TxManager:     b.TxManager,
			Reports:       b.Reports,
			Orders:        b.Orders,
			Stages:        stageSvc,
			FinishedGoods: fg,
			Scrap:         scrapSvc,
			Audit:         rec,
			Locker:        opts.Locker,
			LockTTL:       opts.LockTTL,
		}),
		Adjustment:    adjustment.NewService(b.TxManager, store, b.Reports, stageSvc, b.Orders, scrapSvc),
		FinishedGoods: fg,
		Scrap:         scrapSvc,
		Progress:      progress.NewService(b.Orders, stageSvc, store, fg, scrapSvc),
	}
}

// MemoryBackend returns a process-local backend over store.
func MemoryBackend(store *memory.Store) Backend {
	return Backend{
		TxManager:     store,
		Orders:        store.Orders(),
		Stages:        store.Stages(),
		Reports:       store.Reports(),
		FinishedGoods: store.FinishedGoods(),
		Scrap:         store.Scrap(),
		Audit:         store.Audit(),
		Numerator:     memnumerator.NewMemory(),
	}
}

package production

import (
	"context"
	"fmt"

	"shopfloor/internal/core/apperror"
	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/numerator"
	"shopfloor/internal/core/tx"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/audit"
	"shopfloor/internal/domain/stages"
	"shopfloor/pkg/logger"
)

// NumeratorStrategy for report numbers. Numbers are drawn inside the
// submission transaction, so strict numbering stays gapless.
var NumeratorStrategy = numerator.StrategyStrict

// Store is the report store: persistence, edits before approval and WIP
// aggregation.
type Store struct {
	repo      Repository
	stages    *stages.Service
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Recorder
	hooks     *domain.HookRegistry[*Report]
}

// NewStore creates a report store.
func NewStore(repo Repository, stageSvc *stages.Service, gen numerator.Generator, txManager tx.Manager, rec audit.Recorder) *Store {
	if rec == nil {
		rec = audit.Nop{}
	}
	s := &Store{
		repo:      repo,
		stages:    stageSvc,
		numerator: gen,
		txManager: txManager,
		audit:     rec,
		hooks:     domain.NewHookRegistry[*Report](),
	}
	s.hooks.On(domain.BeforeCreate, func(ctx context.Context, r *Report) error {
		audit.EnrichCreatedBy(ctx, &r.CreatedBy)
		if r.WorkerID == "" {
			r.WorkerID = r.CreatedBy
		}
		return nil
	})
	return s
}

// Hooks exposes the lifecycle hooks of reports.
func (s *Store) Hooks() *domain.HookRegistry[*Report] {
	return s.hooks
}

// Create validates, numbers and stores a report. Callers that also move
// stage counters run it inside their own transaction.
func (s *Store) Create(ctx context.Context, r *Report) error {
	r.BatchCode = NormalizeBatchCode(r.BatchCode)
	r.SourceBatchIDs = r.SourceConsumption.BatchIDs()

	if err := r.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.hooks.Run(ctx, domain.BeforeCreate, r); err != nil {
			return err
		}

		if r.Number == "" {
			cfg := numerator.DefaultConfig(numerator.PrefixReport)
			number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, r.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			r.Number = number
		}

		if err := s.repo.Create(ctx, r); err != nil {
			return fmt.Errorf("create report: %w", err)
		}

		action := audit.ActionSubmit
		if r.Kind.IsManual() {
			action = audit.ActionAdjust
		}
		if err := s.audit.Record(ctx, audit.EntityReport, r.ID, action, map[string]any{
			"number":   r.Number,
			"kind":     r.Kind,
			"quantity": r.Quantity.String(),
			"batch":    r.BatchCode,
		}); err != nil {
			return err
		}

		return s.hooks.Run(ctx, domain.AfterCreate, r)
	})
}

// GetByID returns a report.
func (s *Store) GetByID(ctx context.Context, reportID id.ID) (*Report, error) {
	r, err := s.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, domain.NormalizeNotFound(err, "report", reportID)
	}
	return r, nil
}

// List returns reports matching filter.
func (s *Store) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Report], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// HasPending reports whether any report of the order awaits a decision.
func (s *Store) HasPending(ctx context.Context, orderID id.ID) (bool, error) {
	pending, err := s.repo.ListPendingByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return len(pending) > 0, nil
}

// ListPending returns the approval queue.
func (s *Store) ListPending(ctx context.Context, filter ListFilter) (domain.ListResult[*Report], error) {
	pending := StatusPending
	filter.Status = &pending
	return s.List(ctx, filter)
}

// EditRequest changes the produced/scrap split of a pending report.
type EditRequest struct {
	ReportID      id.ID
	Quantity      types.Quantity
	ScrapQuantity types.Quantity
	Note          *string

	// Version, when positive, must match the stored version.
	Version int
}

// CanAccess reports whether the caller may see or edit r. Workers only
// reach their own reports; approvers and admins reach all of them.
func CanAccess(ctx context.Context, r *Report) bool {
	if appctx.HasAnyRole(ctx, appctx.RoleApprover, appctx.RoleAdmin) {
		return true
	}
	uid := appctx.GetUserID(ctx)
	return uid != "" && r.WorkerID == uid
}

// EditPending edits a pending report in place and shifts the stage's
// pending counter by the change in quantity. Workers may edit only the
// reports they submitted.
func (s *Store) EditPending(ctx context.Context, req EditRequest) (*Report, error) {
	var edited *Report

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, req.ReportID)
		if err != nil {
			return domain.NormalizeNotFound(err, "report", req.ReportID)
		}
		if !CanAccess(ctx, r) {
			return apperror.NewForbidden("report belongs to another worker").
				WithDetail("report_id", r.ID.String())
		}
		if req.Version > 0 && req.Version != r.Version {
			return apperror.NewConcurrentModification("report", req.ReportID)
		}

		before := r.Quantity
		delta, err := r.EditSplit(req.Quantity, req.ScrapQuantity, req.Note)
		if err != nil {
			return err
		}
		if err := r.Validate(ctx); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, r); err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		if delta != 0 {
			if _, err := s.stages.Apply(ctx, r.StageID, stages.ShiftPending(delta)); err != nil {
				return err
			}
		}

		edited = r
		return s.audit.Record(ctx, audit.EntityReport, r.ID, audit.ActionEdit, map[string]any{
			"quantity": map[string]any{"old": before.String(), "new": r.Quantity.String()},
			"scrap":    r.ScrapQuantity.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "report edited", "id", edited.ID, "quantity", edited.Quantity.String(),
		"scrap", edited.ScrapQuantity.String(), "by", appctx.GetUserID(ctx))
	return edited, nil
}

// AggregateOptions tune Aggregate.
type AggregateOptions struct {
	// IncludeArchived returns balances of archived stages too.
	IncludeArchived bool
}

// Aggregate returns per-batch produced, used and balance of a stage.
// Archived stages yield an empty operative view.
func (s *Store) Aggregate(ctx context.Context, stageID id.ID, opts AggregateOptions) ([]WIPBalance, error) {
	st, err := s.stages.GetByID(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if st.IsArchived() && !opts.IncludeArchived {
		return []WIPBalance{}, nil
	}

	balances, err := s.repo.AggregateByBatch(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("aggregate stage %s: %w", stageID, err)
	}
	return balances, nil
}

// Package approval turns a pending production report into durable ledger
// state, or rejects it. Each decision is one transaction: either every
// effect lands or none does.
package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shopfloor/internal/core/apperror"
	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/lock"
	"shopfloor/internal/core/tx"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/audit"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/registers/finishedgoods"
	"shopfloor/internal/domain/registers/scrap"
	"shopfloor/internal/domain/stages"
	"shopfloor/pkg/logger"
)

var tracer = otel.Tracer("shopfloor/approval")

// DefaultLockTTL bounds how long one approver holds a report.
const DefaultLockTTL = 30 * time.Second

// Deps are the collaborators of the engine.
type Deps struct {
	TxManager     tx.Manager
	Reports       production.Repository
	Orders        orders.Repository
	Stages        *stages.Service
	FinishedGoods *finishedgoods.Service
	Scrap         *scrap.Service

	// Audit is optional.
	Audit audit.Recorder

	// Locker is optional. Without it concurrent approvers are serialised
	// by row locks only.
	Locker  lock.Locker
	LockTTL time.Duration
}

// Engine runs approval and rejection transactions.
type Engine struct {
	txManager tx.Manager
	reports   production.Repository
	orders    orders.Repository
	stages    *stages.Service
	finished  *finishedgoods.Service
	scrap     *scrap.Service
	audit     audit.Recorder
	locker    lock.Locker
	lockTTL   time.Duration
	now       func() time.Time
}

// NewEngine creates an approval engine.
func NewEngine(d Deps) *Engine {
	e := &Engine{
		txManager: d.TxManager,
		reports:   d.Reports,
		orders:    d.Orders,
		stages:    d.Stages,
		finished:  d.FinishedGoods,
		scrap:     d.Scrap,
		audit:     d.Audit,
		locker:    d.Locker,
		lockTTL:   d.LockTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if e.audit == nil {
		e.audit = audit.Nop{}
	}
	if e.locker == nil {
		e.locker = lock.Noop{}
	}
	if e.lockTTL <= 0 {
		e.lockTTL = DefaultLockTTL
	}
	return e
}

// Outcome is the state after a committed approval.
type Outcome struct {
	Report   *production.Report      `json:"report"`
	Stage    *stages.Stage           `json:"stage"`
	Receipt  *finishedgoods.Movement `json:"receipt,omitempty"`
	Scrap    *scrap.Record           `json:"scrap,omitempty"`
	Consumed production.Consumption  `json:"consumed,omitempty"`
}

// Approve accepts a pending report. In one transaction it marks the report
// approved, moves the stage counters, debits every upstream batch the report
// consumes, receives finished goods for a final stage and records scrap.
func (e *Engine) Approve(ctx context.Context, reportID id.ID) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "approval.approve",
		trace.WithAttributes(attribute.String("report.id", reportID.String())))
	defer span.End()

	release, err := e.guard(ctx, reportID)
	if err != nil {
		return nil, err
	}
	defer release()

	var out Outcome
	err = e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := e.reports.GetForUpdate(ctx, reportID)
		if err != nil {
			return domain.NormalizeNotFound(err, "report", reportID)
		}
		if err := r.MarkApproved(appctx.GetUserID(ctx), e.now()); err != nil {
			return err
		}

		order, err := e.orders.GetByID(ctx, r.OrderID)
		if err != nil {
			return domain.NormalizeNotFound(err, "order", r.OrderID)
		}

		stage, err := e.stages.Apply(ctx, r.StageID, stages.Approve(r.Quantity, r.ScrapQuantity))
		if err != nil {
			return err
		}

		if err := e.debitSources(ctx, r); err != nil {
			return err
		}

		if err := e.reports.Update(ctx, r); err != nil {
			return fmt.Errorf("update report: %w", err)
		}

		if stage.IsFinalStage && r.Quantity.IsPositive() {
			mv, err := e.finished.Receive(ctx, finishedgoods.Receipt{
				ReportID:    r.ID,
				ProductID:   order.ProductID,
				ProductName: order.ProductName,
				Quantity:    r.Quantity,
				Period:      r.Date,
			})
			if err != nil {
				return err
			}
			out.Receipt = mv
		}

		if r.ScrapQuantity.IsPositive() {
			rec := &scrap.Record{
				ProductID:   order.ProductID,
				ProductName: order.ProductName,
				Quantity:    r.ScrapQuantity,
				Source:      scrap.SourceApproval,
				ReportID:    r.ID,
				StageID:     stage.ID,
				StageTitle:  stage.Title,
				OrderID:     order.ID,
				OrderNumber: order.Number,
				Note:        r.Note,
				Date:        r.Date,
			}
			if err := e.scrap.Record(ctx, rec); err != nil {
				return err
			}
			out.Scrap = rec
		}

		out.Report = r
		out.Stage = stage
		out.Consumed = r.SourceConsumption

		return e.audit.Record(ctx, audit.EntityReport, r.ID, audit.ActionApprove, map[string]any{
			"quantity":  r.Quantity.String(),
			"scrap":     r.ScrapQuantity.String(),
			"completed": stage.Completed.String(),
			"final":     stage.IsFinalStage,
			"sources":   len(r.SourceConsumption),
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, e.aborted(ctx, "approval", reportID, err)
	}

	logger.Info(ctx, "report approved",
		"report_id", reportID,
		"number", out.Report.Number,
		"stage_id", out.Stage.ID,
		"quantity", out.Report.Quantity.String(),
		"stage_status", out.Stage.Status,
	)
	return &out, nil
}

// debitSources increments usedQuantity of every batch r consumes. Batches
// are locked in ID order; any over-debit aborts the approval.
func (e *Engine) debitSources(ctx context.Context, r *production.Report) error {
	if len(r.SourceConsumption) == 0 {
		return nil
	}

	sources, err := e.reports.GetManyForUpdate(ctx, r.SourceConsumption.BatchIDs())
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("source batch", r.SourceConsumption.BatchIDs()).WithCause(err)
		}
		return err
	}

	for _, src := range sources {
		if err := src.Consume(r.SourceConsumption[src.ID]); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				appErr.WithDetail("report_id", r.ID.String())
			}
			return err
		}
	}

	if err := e.reports.UpdateUsage(ctx, sources); err != nil {
		return fmt.Errorf("update source usage: %w", err)
	}
	return e.checkGroups(ctx, r, sources)
}

// checkGroups refuses a debit that leaves a (stage, batch code) group
// below zero. Manual deductions lower a group without touching the
// usage of its reports, so per-report checks alone are not enough.
func (e *Engine) checkGroups(ctx context.Context, r *production.Report, sources []*production.Report) error {
	drawn := make(map[id.ID]map[string]types.Quantity)
	for _, src := range sources {
		if drawn[src.StageID] == nil {
			drawn[src.StageID] = make(map[string]types.Quantity)
		}
		drawn[src.StageID][production.NormalizeBatchCode(src.BatchCode)] += r.SourceConsumption[src.ID]
	}

	for stageID, group := range drawn {
		balances, err := e.reports.AggregateByBatch(ctx, stageID)
		if err != nil {
			return err
		}
		for code, q := range group {
			if bal := production.BalanceOf(balances, code); bal.IsNegative() {
				return apperror.NewInsufficientSupply(code, q.String(), (bal+q).String()).
					WithDetail("stage_id", stageID.String()).
					WithDetail("report_id", r.ID.String())
			}
		}
	}
	return nil
}

// Reject declines a pending report and releases its pending quantity.
// Nothing else changes.
func (e *Engine) Reject(ctx context.Context, reportID id.ID, reason string) (*production.Report, error) {
	ctx, span := tracer.Start(ctx, "approval.reject",
		trace.WithAttributes(attribute.String("report.id", reportID.String())))
	defer span.End()

	release, err := e.guard(ctx, reportID)
	if err != nil {
		return nil, err
	}
	defer release()

	var rejected *production.Report
	err = e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := e.reports.GetForUpdate(ctx, reportID)
		if err != nil {
			return domain.NormalizeNotFound(err, "report", reportID)
		}
		if err := r.MarkRejected(appctx.GetUserID(ctx), reason, e.now()); err != nil {
			return err
		}
		if err := e.reports.Update(ctx, r); err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		if _, err := e.stages.Apply(ctx, r.StageID, stages.Release(r.Quantity)); err != nil {
			return err
		}

		rejected = r
		return e.audit.Record(ctx, audit.EntityReport, r.ID, audit.ActionReject, map[string]any{
			"quantity": r.Quantity.String(),
			"reason":   r.RejectReason,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, e.aborted(ctx, "rejection", reportID, err)
	}

	logger.Info(ctx, "report rejected", "report_id", reportID, "reason", rejected.RejectReason)
	return rejected, nil
}

// guard takes the per-report lock, if a locker is configured.
func (e *Engine) guard(ctx context.Context, reportID id.ID) (func(), error) {
	l, err := e.locker.Obtain(ctx, "approval:"+reportID.String(), e.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, apperror.NewConflict("Report is being processed by another approver").
				WithDetail("report_id", reportID.String())
		}
		return nil, apperror.NewInternal(fmt.Errorf("obtain approval lock: %w", err))
	}
	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "release approval lock", "report_id", reportID, "error", err)
		}
	}, nil
}

// aborted logs a rolled back decision. Business errors pass through;
// anything else becomes TRANSACTION_ABORTED so the caller can retry.
func (e *Engine) aborted(ctx context.Context, op string, reportID id.ID, err error) error {
	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.HTTPStatus >= 500 {
			logger.Error(ctx, op+" rolled back", "report_id", reportID, "error", err)
			return apperror.NewTransactionAborted(op, err)
		}
		logger.Warn(ctx, op+" refused", "report_id", reportID, "code", appErr.Code, "message", appErr.Message)
		return err
	}
	logger.Error(ctx, op+" rolled back", "report_id", reportID, "error", err)
	return apperror.NewTransactionAborted(op, err).WithDetail("report_id", reportID.String())
}

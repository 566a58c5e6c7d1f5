// Package adjustment posts manual stock corrections. They are created
// already approved and never pass through the approval queue.
package adjustment

import (
	"context"
	"strings"
	"time"

	"shopfloor/internal/core/apperror"
	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/tx"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/allocation"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/registers/scrap"
	"shopfloor/internal/domain/stages"
	"shopfloor/pkg/logger"
)

// Request is a manual adjustment. Quantity may be given with either sign
// for deductions and defects; it is stored negative.
type Request struct {
	StageID   id.ID
	Kind      production.Kind
	Quantity  types.Quantity
	BatchCode string
	Note      string
	Date      time.Time
}

// Result of a posted adjustment.
type Result struct {
	Report *production.Report `json:"report"`
	Stage  *stages.Stage      `json:"stage"`
	Scrap  *scrap.Record      `json:"scrap,omitempty"`
}

// Service posts manual adjustments.
type Service struct {
	txManager tx.Manager
	store     *production.Store
	reports   production.Repository
	stages    *stages.Service
	orders    orders.Repository
	scrap     *scrap.Service
	now       func() time.Time
}

// NewService creates an adjustment service.
func NewService(txManager tx.Manager, store *production.Store, reportRepo production.Repository, stageSvc *stages.Service, orderRepo orders.Repository, scrapSvc *scrap.Service) *Service {
	return &Service{
		txManager: txManager,
		store:     store,
		reports:   reportRepo,
		stages:    stageSvc,
		orders:    orderRepo,
		scrap:     scrapSvc,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// signed returns the stored quantity for kind.
func signed(kind production.Kind, q types.Quantity) (types.Quantity, error) {
	switch kind {
	case production.KindManualStock:
		if !q.IsPositive() {
			return 0, apperror.NewValidation("manual stock quantity must be positive").
				WithDetail("field", "quantity")
		}
		return q, nil
	case production.KindManualAdjustment, production.KindManualDefect:
		if q.IsZero() {
			return 0, apperror.NewValidation("quantity is required").
				WithDetail("field", "quantity")
		}
		return q.Abs().Neg(), nil
	}
	return 0, apperror.NewValidation("not a manual report kind").
		WithDetail("field", "kind").
		WithDetail("value", kind)
}

// freeBalance is the batch balance of a stage minus what pending downstream
// reports have already reserved from it. The batch rows are locked first,
// so an approval drawing on them waits for this transaction.
func (s *Service) freeBalance(ctx context.Context, stageID, orderID id.ID, batchCode string) (types.Quantity, error) {
	approved, err := s.reports.ListApprovedByStages(ctx, []id.ID{stageID})
	if err != nil {
		return 0, err
	}
	var group []id.ID
	for _, r := range approved {
		if production.NormalizeBatchCode(r.BatchCode) == batchCode {
			group = append(group, r.ID)
		}
	}
	if len(group) > 0 {
		if _, err := s.reports.GetManyForUpdate(ctx, group); err != nil {
			return 0, err
		}
	}

	balances, err := s.reports.AggregateByBatch(ctx, stageID)
	if err != nil {
		return 0, err
	}
	pending, err := s.reports.ListPendingByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	reserved := allocation.PendingReservations(pending, nil)

	free := production.BalanceOf(balances, batchCode)
	for _, batchID := range group {
		free -= reserved[batchID]
	}
	return free, nil
}

// Post creates an approved manual report and applies it to the stage.
// Deductions cannot take a batch below what pending reports reserve from it.
func (s *Service) Post(ctx context.Context, req Request) (*Result, error) {
	if !appctx.IsAdmin(ctx) {
		return nil, apperror.NewForbidden("manual adjustments require administrator rights")
	}

	q, err := signed(req.Kind, req.Quantity)
	if err != nil {
		return nil, err
	}

	stage, err := s.stages.GetByID(ctx, req.StageID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetByID(ctx, stage.OrderID)
	if err != nil {
		return nil, domain.NormalizeNotFound(err, "order", stage.OrderID)
	}

	now := s.now()
	r := production.NewReport(stage.ID, order.ID, req.Kind, q)
	r.Status = production.StatusApproved
	r.ApprovedBy = appctx.GetUserID(ctx)
	r.ApprovedAt = &now
	r.BatchCode = production.NormalizeBatchCode(req.BatchCode)
	r.Note = strings.TrimSpace(req.Note)
	if !req.Date.IsZero() {
		r.Date = req.Date.UTC()
	}
	r.Snapshot = production.Snapshot{
		OrderNumber: order.Number,
		StageTitle:  stage.Title,
		ProductID:   order.ProductID,
		ProductName: order.ProductName,
	}

	transition := stages.Adjust(q)
	if req.Kind == production.KindManualDefect {
		transition = stages.Chain(transition, stages.AddScrap(q.Abs()))
	}

	var res Result
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// The stage lock serialises adjustments of one stage, so the
		// balance read below cannot go stale before commit.
		updated, err := s.stages.Apply(ctx, stage.ID, transition)
		if err != nil {
			return err
		}

		if q.IsNegative() {
			available, err := s.freeBalance(ctx, stage.ID, order.ID, r.BatchCode)
			if err != nil {
				return err
			}
			if available+q < 0 {
				return apperror.NewInsufficientSupply(r.BatchCode, q.Abs().String(), available.String()).
					WithDetail("stage_id", stage.ID.String())
			}
		}

		if err := s.store.Create(ctx, r); err != nil {
			return err
		}

		if req.Kind == production.KindManualDefect {
			rec := &scrap.Record{
				ProductID:   order.ProductID,
				ProductName: order.ProductName,
				Quantity:    q.Abs(),
				Source:      scrap.SourceManualDefect,
				ReportID:    r.ID,
				StageID:     stage.ID,
				StageTitle:  stage.Title,
				OrderID:     order.ID,
				OrderNumber: order.Number,
				Note:        r.Note,
				Date:        r.Date,
			}
			if err := s.scrap.Record(ctx, rec); err != nil {
				return err
			}
			res.Scrap = rec
		}

		res.Report = r
		res.Stage = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "manual adjustment posted",
		"report_id", r.ID,
		"kind", r.Kind,
		"stage_id", stage.ID,
		"quantity", q.String(),
		"batch", r.BatchCode,
	)
	return &res, nil
}

// Package submission implements the worker's side of the ledger: building
// a pending report with its snapshot and provisional batch consumption.
package submission

import (
	"context"
	"fmt"
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
	"shopfloor/internal/domain/stages"
	"shopfloor/pkg/logger"
)

// Request is a worker's report.
type Request struct {
	StageID       id.ID
	Quantity      types.Quantity
	ScrapQuantity types.Quantity
	BatchCode     string
	Note          string

	// Date defaults to now.
	Date time.Time

	// WorkerID defaults to the caller.
	WorkerID string

	// Selections are the operator's picks of upstream batches.
	Selections []allocation.Selection
}

// Result is the stored report plus non-fatal warnings.
type Result struct {
	Report   *production.Report                     `json:"report"`
	Warnings []allocation.InsufficientSupplyWarning `json:"warnings,omitempty"`
}

// Service submits reports.
type Service struct {
	txManager tx.Manager
	store     *production.Store
	stages    *stages.Service
	orders    orders.Repository
	allocator *allocation.Allocator
}

// NewService creates a submission service.
func NewService(txManager tx.Manager, store *production.Store, stageSvc *stages.Service, orderRepo orders.Repository, alloc *allocation.Allocator) *Service {
	return &Service{
		txManager: txManager,
		store:     store,
		stages:    stageSvc,
		orders:    orderRepo,
		allocator: alloc,
	}
}

// Submit validates the request, computes the consumption the worker picked
// and stores a pending report while adding its quantity to the stage's
// pending counter.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	if id.IsNil(req.StageID) {
		return nil, apperror.NewValidation("stage is required").
			WithDetail("field", "stageId")
	}

	stage, err := s.stages.GetByID(ctx, req.StageID)
	if err != nil {
		return nil, err
	}
	if stage.IsArchived() {
		return nil, apperror.NewBusinessRule(apperror.CodeStageArchived, "Stage is archived").
			WithDetail("stage_id", stage.ID.String())
	}
	if stage.QuantityRequired() && !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}

	order, err := s.orders.GetByID(ctx, stage.OrderID)
	if err != nil {
		return nil, domain.NormalizeNotFound(err, "order", stage.OrderID)
	}

	kind := production.KindProduction
	if stage.Kind == stages.KindSimple {
		kind = production.KindSimpleReport
	}

	r := production.NewReport(stage.ID, order.ID, kind, req.Quantity)
	r.ScrapQuantity = req.ScrapQuantity
	r.BatchCode = production.NormalizeBatchCode(req.BatchCode)
	r.Note = strings.TrimSpace(req.Note)
	r.WorkerID = req.WorkerID
	if r.WorkerID == "" {
		r.WorkerID = appctx.GetUserID(ctx)
	}
	if !req.Date.IsZero() {
		r.Date = req.Date.UTC()
	}
	r.Snapshot = production.Snapshot{
		OrderNumber: order.Number,
		StageTitle:  stage.Title,
		ProductID:   order.ProductID,
		ProductName: order.ProductName,
	}

	var warnings []allocation.InsufficientSupplyWarning
	if stage.HasInputs() {
		draft, err := s.allocator.Draft(ctx, allocation.DraftRequest{StageID: stage.ID, Quantity: req.Quantity})
		if err != nil {
			return nil, err
		}
		alloc, err := s.allocator.Allocate(draft, req.Selections)
		if err != nil {
			return nil, err
		}
		r.SourceConsumption = alloc.SourceConsumption
		warnings = alloc.Warnings
	} else if len(req.Selections) > 0 {
		return nil, apperror.NewValidation("stage has no inputs to allocate").
			WithDetail("field", "selections")
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, r); err != nil {
			return err
		}
		if _, err := s.stages.Apply(ctx, stage.ID, stages.Submit(r.Quantity)); err != nil {
			return fmt.Errorf("bump pending: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, w := range warnings {
		logger.Warn(ctx, "insufficient supply allocated",
			"report_id", r.ID,
			"source_stage", w.SourceStage,
			"needed", w.Needed.String(),
			"allocated", w.Allocated.String(),
			"missing", w.Missing.String(),
		)
	}
	logger.Info(ctx, "report submitted",
		"report_id", r.ID,
		"number", r.Number,
		"stage_id", stage.ID,
		"quantity", r.Quantity.String(),
		"batches", len(r.SourceConsumption),
	)

	return &Result{Report: r, Warnings: warnings}, nil
}

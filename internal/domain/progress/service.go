// Package progress builds the read-only progress summary of an order from
// the stage tracker, the report store and the registers.
package progress

import (
	"context"
	"fmt"

	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/registers/finishedgoods"
	"shopfloor/internal/domain/registers/scrap"
	"shopfloor/internal/domain/stages"
)

// StageProgress is one stage of the summary.
type StageProgress struct {
	Stage *stages.Stage           `json:"stage"`
	WIP   []production.WIPBalance `json:"wip"`
	Ratio float64                 `json:"completedRatio"`
}

// Summary is the state of an order across the ledger.
type Summary struct {
	Order          *orders.Order   `json:"order"`
	Stages         []StageProgress `json:"stages"`
	PendingReports int             `json:"pendingReports"`
	PendingQty     types.Quantity  `json:"pendingQuantity"`
	Received       types.Quantity  `json:"finishedGoodsReceived"`
	Scrapped       types.Quantity  `json:"scrapped"`
}

// Service composes summaries.
type Service struct {
	orders   orders.Repository
	stages   *stages.Service
	reports  *production.Store
	finished *finishedgoods.Service
	scrap    *scrap.Service
}

// NewService creates a progress service.
func NewService(orderRepo orders.Repository, stageSvc *stages.Service, store *production.Store, fg *finishedgoods.Service, scrapSvc *scrap.Service) *Service {
	return &Service{orders: orderRepo, stages: stageSvc, reports: store, finished: fg, scrap: scrapSvc}
}

// maxPage bounds list calls made while summarising.
const maxPage = 500

// Order summarises one order. Archived stages are left out.
func (s *Service) Order(ctx context.Context, orderID id.ID) (*Summary, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, domain.NormalizeNotFound(err, "order", orderID)
	}

	list, err := s.stages.ListByOrder(ctx, orderID, false)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Order: order, Stages: make([]StageProgress, 0, len(list))}
	for _, st := range list {
		wip, err := s.reports.Aggregate(ctx, st.ID, production.AggregateOptions{})
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.ID, err)
		}
		sp := StageProgress{Stage: st, WIP: wip}
		if st.Planned.IsPositive() {
			sp.Ratio = st.Completed.Float64() / st.Planned.Float64()
		}
		sum.Stages = append(sum.Stages, sp)
	}

	pending, err := s.reports.ListPending(ctx, production.ListFilter{
		ListFilter: domain.ListFilter{Limit: maxPage},
		OrderID:    &orderID,
	})
	if err != nil {
		return nil, err
	}
	sum.PendingReports = int(pending.TotalCount)
	for _, r := range pending.Items {
		sum.PendingQty += r.Quantity
	}

	movements, err := s.finished.Movements(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}
	for _, m := range movements {
		if s.belongs(ctx, m.RecorderID, orderID) {
			sum.Received += m.Quantity
		}
	}

	scrapped, err := s.scrap.List(ctx, scrap.ListFilter{
		ListFilter: domain.ListFilter{Limit: maxPage},
		OrderID:    &orderID,
	})
	if err != nil {
		return nil, err
	}
	for _, r := range scrapped.Items {
		sum.Scrapped += r.Quantity
	}

	return sum, nil
}

// belongs reports whether the report that recorded a movement is of orderID.
func (s *Service) belongs(ctx context.Context, reportID, orderID id.ID) bool {
	r, err := s.reports.GetByID(ctx, reportID)
	return err == nil && r.OrderID == orderID
}

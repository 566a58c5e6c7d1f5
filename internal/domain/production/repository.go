package production

import (
	"context"
	"time"

	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
)

// Repository defines persistence for production reports.
type Repository interface {
	Create(ctx context.Context, report *Report) error
	GetByID(ctx context.Context, reportID id.ID) (*Report, error)

	// GetForUpdate loads the report and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, reportID id.ID) (*Report, error)

	// GetManyForUpdate locks reports in ascending ID order so concurrent
	// approvals drawing on the same batches cannot deadlock. Missing IDs
	// yield NOT_FOUND.
	GetManyForUpdate(ctx context.Context, reportIDs []id.ID) ([]*Report, error)

	// Update persists a report with a version check.
	Update(ctx context.Context, report *Report) error

	// UpdateUsage persists usedQuantity of several locked reports at once.
	UpdateUsage(ctx context.Context, reports []*Report) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Report], error)

	// ListApprovedByStages returns approved reports of the given stages,
	// oldest first.
	ListApprovedByStages(ctx context.Context, stageIDs []id.ID) ([]*Report, error)

	// ListPendingByOrder returns pending reports of an order.
	ListPendingByOrder(ctx context.Context, orderID id.ID) ([]*Report, error)

	// AggregateByBatch computes WIP balances of a stage over approved reports.
	AggregateByBatch(ctx context.Context, stageID id.ID) ([]WIPBalance, error)
}

// ListFilter for reports.
type ListFilter struct {
	domain.ListFilter

	StageID   *id.ID
	OrderID   *id.ID
	Status    *Status
	Kind      *Kind
	BatchCode *string
	WorkerID  *string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// Matches applies the filter to r. Used by in-memory stores.
func (f ListFilter) Matches(r *Report) bool {
	switch {
	case f.StageID != nil && r.StageID != *f.StageID:
		return false
	case f.OrderID != nil && r.OrderID != *f.OrderID:
		return false
	case f.Status != nil && r.Status != *f.Status:
		return false
	case f.Kind != nil && r.Kind != *f.Kind:
		return false
	case f.BatchCode != nil && r.BatchCode != NormalizeBatchCode(*f.BatchCode):
		return false
	case f.WorkerID != nil && r.WorkerID != *f.WorkerID:
		return false
	case f.DateFrom != nil && r.Date.Before(*f.DateFrom):
		return false
	case f.DateTo != nil && r.Date.After(*f.DateTo):
		return false
	}
	return true
}

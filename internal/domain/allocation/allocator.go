// Package allocation computes which upstream batches a downstream report may
// draw from, and validates the operator's picks.
//
// Reservations are never stored: a batch's pending reservation is the sum
// of what currently pending reports of the order claim from it.
package allocation

import (
	"context"
	"slices"
	"strings"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/production"
	"shopfloor/internal/domain/stages"
)

// Candidate is an upstream batch with its current availability.
type Candidate struct {
	ReportID     id.ID          `json:"reportId"`
	ReportNumber string         `json:"reportNumber"`
	StageID      id.ID          `json:"stageId"`
	StageTitle   string         `json:"stageTitle"`
	BatchCode    string         `json:"batchCode"`
	Date         time.Time      `json:"date"`
	Quantity     types.Quantity `json:"quantity"`
	Used         types.Quantity `json:"used"`
	Reserved     types.Quantity `json:"reserved"`
	AvailableNow types.Quantity `json:"availableNow"`
}

// Requirement is one input of the stage with its candidates.
type Requirement struct {
	SourceStage string         `json:"sourceStage"`
	Ratio       types.Ratio    `json:"ratio"`
	TotalNeeded types.Quantity `json:"totalNeeded"`
	Available   types.Quantity `json:"available"`
	Candidates  []Candidate    `json:"candidates"`
}

// Draft is what the operator chooses from when submitting.
type Draft struct {
	StageID      id.ID          `json:"stageId"`
	OrderID      id.ID          `json:"orderId"`
	Quantity     types.Quantity `json:"quantity"`
	Requirements []Requirement  `json:"requirements"`
}

// DraftRequest asks for candidates for producing Quantity on StageID.
type DraftRequest struct {
	StageID  id.ID
	Quantity types.Quantity

	// ExcludeReportID drops one pending report's reservations, so an edited
	// report does not compete with itself.
	ExcludeReportID *id.ID
}

// Selection is one operator pick.
type Selection struct {
	ReportID id.ID          `json:"reportId"`
	Quantity types.Quantity `json:"quantity"`
}

// WarningInsufficientSupply is the code carried by under-allocation warnings.
const WarningInsufficientSupply = "INSUFFICIENT_SUPPLY_WARNING"

// InsufficientSupplyWarning reports that an input was under-allocated.
// It never blocks submission.
type InsufficientSupplyWarning struct {
	Code        string         `json:"code"`
	SourceStage string         `json:"sourceStage"`
	Needed      types.Quantity `json:"needed"`
	Allocated   types.Quantity `json:"allocated"`
	Missing     types.Quantity `json:"missing"`
}

// Allocation is a validated set of picks.
type Allocation struct {
	SourceConsumption production.Consumption      `json:"sourceConsumption"`
	Warnings          []InsufficientSupplyWarning `json:"warnings,omitempty"`
}

// Allocator builds drafts from the stores.
type Allocator struct {
	stages  stages.Repository
	reports production.Repository
}

// NewAllocator creates an allocator.
func NewAllocator(stageRepo stages.Repository, reportRepo production.Repository) *Allocator {
	return &Allocator{stages: stageRepo, reports: reportRepo}
}

// PendingReservations sums sourceConsumption over pending reports per batch.
func PendingReservations(pending []*production.Report, exclude *id.ID) map[id.ID]types.Quantity {
	reserved := make(map[id.ID]types.Quantity)
	for _, r := range pending {
		if !r.IsPending() || (exclude != nil && r.ID == *exclude) {
			continue
		}
		for batchID, q := range r.SourceConsumption {
			reserved[batchID] += q
		}
	}
	return reserved
}

// Draft lists candidates for every input requirement of the stage.
func (a *Allocator) Draft(ctx context.Context, req DraftRequest) (*Draft, error) {
	if req.Quantity.IsNegative() {
		return nil, apperror.NewValidation("quantity cannot be negative").
			WithDetail("field", "quantity")
	}

	stage, err := a.stages.GetByID(ctx, req.StageID)
	if err != nil {
		return nil, domain.NormalizeNotFound(err, "stage", req.StageID)
	}

	draft := &Draft{
		StageID:      stage.ID,
		OrderID:      stage.OrderID,
		Quantity:     req.Quantity,
		Requirements: make([]Requirement, 0, len(stage.Inputs)),
	}
	if !stage.HasInputs() {
		return draft, nil
	}

	orderStages, err := a.stages.ListByOrder(ctx, stage.OrderID)
	if err != nil {
		return nil, err
	}
	pending, err := a.reports.ListPendingByOrder(ctx, stage.OrderID)
	if err != nil {
		return nil, err
	}
	reserved := PendingReservations(pending, req.ExcludeReportID)

	for _, in := range stage.Inputs {
		requirement := Requirement{
			SourceStage: in.SourceStage,
			Ratio:       in.Ratio,
			TotalNeeded: req.Quantity.MulRatio(in.Ratio),
			Candidates:  []Candidate{},
		}

		sources := make(map[id.ID]*stages.Stage)
		var sourceIDs []id.ID
		for _, st := range orderStages {
			if st.ID != stage.ID && stages.SameTitle(st.Title, in.SourceStage) {
				sources[st.ID] = st
				sourceIDs = append(sourceIDs, st.ID)
			}
		}

		if len(sourceIDs) > 0 {
			approved, err := a.reports.ListApprovedByStages(ctx, sourceIDs)
			if err != nil {
				return nil, err
			}
			for _, r := range approved {
				if r.OrderID != stage.OrderID || !r.IsConsumableSource() {
					continue
				}
				available := r.Quantity - r.UsedQuantity - reserved[r.ID]
				if !available.IsPositive() {
					continue
				}
				requirement.Candidates = append(requirement.Candidates, Candidate{
					ReportID:     r.ID,
					ReportNumber: r.Number,
					StageID:      r.StageID,
					StageTitle:   sources[r.StageID].Title,
					BatchCode:    r.BatchCode,
					Date:         r.Date,
					Quantity:     r.Quantity,
					Used:         r.UsedQuantity,
					Reserved:     reserved[r.ID],
					AvailableNow: available,
				})
				requirement.Available += available
			}
		}

		slices.SortFunc(requirement.Candidates, func(x, y Candidate) int {
			if c := x.Date.Compare(y.Date); c != 0 {
				return c
			}
			return strings.Compare(x.ReportNumber, y.ReportNumber)
		})
		draft.Requirements = append(draft.Requirements, requirement)
	}

	return draft, nil
}

// Allocate validates selections against draft. Each pick must name a
// candidate and stay within its availableNow and the requirement's
// remaining need. Under-allocation is reported as warnings.
func (a *Allocator) Allocate(draft *Draft, selections []Selection) (*Allocation, error) {
	type slot struct {
		req  int
		cand Candidate
	}
	index := make(map[id.ID]slot)
	for ri, req := range draft.Requirements {
		for _, c := range req.Candidates {
			index[c.ReportID] = slot{req: ri, cand: c}
		}
	}

	merged := make(map[id.ID]types.Quantity)
	var order []id.ID
	for i, sel := range selections {
		if !sel.Quantity.IsPositive() {
			return nil, apperror.NewValidation("selected quantity must be positive").
				WithDetail("field", "selections").
				WithDetail("index", i)
		}
		if _, seen := merged[sel.ReportID]; !seen {
			order = append(order, sel.ReportID)
		}
		merged[sel.ReportID] += sel.Quantity
	}

	remaining := make([]types.Quantity, len(draft.Requirements))
	for ri, req := range draft.Requirements {
		remaining[ri] = req.TotalNeeded
	}

	consumption := make(production.Consumption, len(merged))
	for _, batchID := range order {
		q := merged[batchID]
		s, ok := index[batchID]
		if !ok {
			return nil, apperror.NewValidation("batch is not available for this stage").
				WithDetail("field", "selections").
				WithDetail("batch_id", batchID.String())
		}
		if q > s.cand.AvailableNow {
			return nil, apperror.NewValidation("selected quantity exceeds available").
				WithDetail("batch_id", batchID.String()).
				WithDetail("requested", q.String()).
				WithDetail("available", s.cand.AvailableNow.String())
		}
		if q > remaining[s.req] {
			return nil, apperror.NewValidation("selected quantity exceeds what the requirement needs").
				WithDetail("batch_id", batchID.String()).
				WithDetail("source_stage", draft.Requirements[s.req].SourceStage).
				WithDetail("requested", q.String()).
				WithDetail("remaining", remaining[s.req].String())
		}
		remaining[s.req] -= q
		consumption[batchID] = q
	}

	alloc := &Allocation{SourceConsumption: consumption}
	for ri, req := range draft.Requirements {
		if remaining[ri].IsPositive() {
			alloc.Warnings = append(alloc.Warnings, InsufficientSupplyWarning{
				Code:        WarningInsufficientSupply,
				SourceStage: req.SourceStage,
				Needed:      req.TotalNeeded,
				Allocated:   req.TotalNeeded - remaining[ri],
				Missing:     remaining[ri],
			})
		}
	}
	return alloc, nil
}

// Package production holds production reports, the unit of the ledger:
// a worker's claim that a stage produced a quantity of one batch, and the
// upstream batches it consumed to do so.
package production

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/entity"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
)

// Kind of report.
type Kind string

const (
	KindProduction       Kind = "production"
	KindSimpleReport     Kind = "simple_report"
	KindManualStock      Kind = "manual_stock"
	KindManualAdjustment Kind = "manual_adjustment"
	KindManualDefect     Kind = "manual_defect"

	// kindManualDeduction is accepted on input as KindManualAdjustment.
	kindManualDeduction = "manual_deduction"
)

// ParseKind normalises a kind received from a client.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindProduction, KindSimpleReport, KindManualStock, KindManualAdjustment, KindManualDefect:
		return k, nil
	case kindManualDeduction:
		return KindManualAdjustment, nil
	}
	return "", apperror.NewValidation("unknown report kind").
		WithDetail("field", "kind").
		WithDetail("value", s)
}

// IsManual reports whether the kind bypasses approval.
func (k Kind) IsManual() bool {
	return k == KindManualStock || k == KindManualAdjustment || k == KindManualDefect
}

// Status of a report.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// NoBatch is the batch code of stages without lot tracking.
const NoBatch = "-"

// NormalizeBatchCode trims code and maps empty to NoBatch.
func NormalizeBatchCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return NoBatch
	}
	return code
}

// Consumption maps an upstream report (batch) to the quantity drawn from it.
type Consumption map[id.ID]types.Quantity

// Total sums the drawn quantities.
func (c Consumption) Total() types.Quantity {
	var total types.Quantity
	for _, q := range c {
		total += q
	}
	return total
}

// BatchIDs returns the upstream report IDs in ascending order, the order
// in which they are locked.
func (c Consumption) BatchIDs() []id.ID {
	ids := slices.Collect(maps.Keys(c))
	slices.SortFunc(ids, func(a, b id.ID) int { return strings.Compare(a.String(), b.String()) })
	return ids
}

// Snapshot holds descriptive fields copied by value when the report is
// created. They stay valid if the order or stage is later deleted.
type Snapshot struct {
	OrderNumber string `db:"order_number" json:"orderNumber"`
	StageTitle  string `db:"stage_title" json:"stageTitle"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`
}

// Report is a production report.
type Report struct {
	entity.Document

	StageID  id.ID  `db:"stage_id" json:"stageId"`
	OrderID  id.ID  `db:"order_id" json:"orderId"`
	WorkerID string `db:"worker_id" json:"workerId"`

	Kind   Kind   `db:"kind" json:"kind"`
	Status Status `db:"status" json:"status"`

	// Quantity is signed: manual deductions and defects are negative.
	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	ScrapQuantity types.Quantity `db:"scrap_quantity" json:"scrapQuantity"`

	// UsedQuantity is how much of this batch downstream approvals consumed.
	UsedQuantity types.Quantity `db:"used_quantity" json:"usedQuantity"`

	BatchCode string `db:"batch_code" json:"batchCode"`
	Note      string `db:"note" json:"note,omitempty"`

	SourceConsumption Consumption `db:"source_consumption" json:"sourceConsumption,omitempty"`
	SourceBatchIDs    []id.ID     `db:"source_batch_ids" json:"sourceBatchIds,omitempty"`

	Snapshot

	ApprovedBy   string     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt   *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedBy   string     `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt   *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectReason string     `db:"reject_reason" json:"rejectReason,omitempty"`
}

// NewReport creates a pending report.
func NewReport(stageID, orderID id.ID, kind Kind, quantity types.Quantity) *Report {
	return &Report{
		Document:          entity.NewDocument(),
		StageID:           stageID,
		OrderID:           orderID,
		Kind:              kind,
		Status:            StatusPending,
		Quantity:          quantity,
		BatchCode:         NoBatch,
		SourceConsumption: Consumption{},
	}
}

// Validate implements entity.Validatable.
func (r *Report) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(r.StageID) {
		return apperror.NewValidation("stage is required").
			WithDetail("field", "stageId")
	}
	if id.IsNil(r.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}
	if r.ScrapQuantity.IsNegative() {
		return apperror.NewValidation("scrap quantity cannot be negative").
			WithDetail("field", "scrapQuantity")
	}

	switch r.Kind {
	case KindProduction, KindManualStock:
		if !r.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "quantity")
		}
	case KindSimpleReport:
		if r.Quantity.IsNegative() {
			return apperror.NewValidation("quantity cannot be negative").
				WithDetail("field", "quantity")
		}
	case KindManualAdjustment, KindManualDefect:
		if !r.Quantity.IsNegative() {
			return apperror.NewValidation("deduction quantity must be negative").
				WithDetail("field", "quantity")
		}
		if len(r.SourceConsumption) > 0 {
			return apperror.NewValidation("manual reports cannot consume source batches").
				WithDetail("field", "sourceConsumption")
		}
	default:
		return apperror.NewValidation("unknown report kind").
			WithDetail("field", "kind").
			WithDetail("value", r.Kind)
	}

	for batchID, q := range r.SourceConsumption {
		if !q.IsPositive() {
			return apperror.NewValidation("consumed quantity must be positive").
				WithDetail("field", "sourceConsumption").
				WithDetail("batch_id", batchID.String())
		}
	}

	if r.UsedQuantity.IsNegative() || r.UsedQuantity > types.Max(r.Quantity, 0) {
		return apperror.NewValidation("used quantity out of range").
			WithDetail("field", "usedQuantity")
	}
	return nil
}

// IsPending reports whether the report awaits a decision.
func (r *Report) IsPending() bool {
	return r.Status == StatusPending
}

// HasBatchCode reports whether the report names an explicit lot.
func (r *Report) HasBatchCode() bool {
	return r.BatchCode != "" && r.BatchCode != NoBatch
}

// IsConsumableSource reports whether downstream stages may draw from this
// report. Deductions and defects never are; manual stock only when it
// names a lot.
func (r *Report) IsConsumableSource() bool {
	if r.Status != StatusApproved || !r.Quantity.IsPositive() {
		return false
	}
	switch r.Kind {
	case KindProduction, KindSimpleReport:
		return true
	case KindManualStock:
		return r.HasBatchCode()
	}
	return false
}

// Remaining is quantity minus what approvals already consumed.
func (r *Report) Remaining() types.Quantity {
	return r.Quantity - r.UsedQuantity
}

// Consume debits q from this batch. It refuses to push usedQuantity above
// quantity.
func (r *Report) Consume(q types.Quantity) error {
	if !q.IsPositive() {
		return apperror.NewValidation("consumed quantity must be positive").
			WithDetail("batch_id", r.ID.String())
	}
	if !r.IsConsumableSource() {
		return apperror.NewBusinessRule(apperror.CodeInsufficientSupply, "Batch cannot be consumed").
			WithDetail("batch_id", r.ID.String()).
			WithDetail("kind", r.Kind).
			WithDetail("status", r.Status)
	}
	if r.UsedQuantity+q > r.Quantity {
		return apperror.NewInsufficientSupply(r.ID.String(), q.String(), r.Remaining().String())
	}
	r.UsedQuantity += q
	return nil
}

// MarkApproved moves a pending report to approved.
func (r *Report) MarkApproved(userID string, at time.Time) error {
	if !r.IsPending() {
		return apperror.NewReportNotPending(r.ID.String(), string(r.Status))
	}
	r.Status = StatusApproved
	r.ApprovedBy = userID
	r.ApprovedAt = &at
	return nil
}

// MarkRejected moves a pending report to rejected.
func (r *Report) MarkRejected(userID, reason string, at time.Time) error {
	if !r.IsPending() {
		return apperror.NewReportNotPending(r.ID.String(), string(r.Status))
	}
	r.Status = StatusRejected
	r.RejectedBy = userID
	r.RejectedAt = &at
	r.RejectReason = strings.TrimSpace(reason)
	return nil
}

// EditSplit changes the produced/scrap split of a pending report and
// returns the change in produced quantity.
func (r *Report) EditSplit(quantity, scrap types.Quantity, note *string) (types.Quantity, error) {
	if !r.IsPending() {
		return 0, apperror.NewReportNotPending(r.ID.String(), string(r.Status))
	}
	delta := quantity - r.Quantity
	r.Quantity = quantity
	r.ScrapQuantity = scrap
	if note != nil {
		r.Note = strings.TrimSpace(*note)
	}
	return delta, nil
}

// ApproveTime returns the approval time or zero.
func (r *Report) ApproveTime() time.Time {
	if r.ApprovedAt == nil {
		return time.Time{}
	}
	return *r.ApprovedAt
}

// Package scrap is the defect ledger: scrapped units recorded at approval
// and by manual defect adjustments.
package scrap

import (
	"context"
	"strings"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
)

// Source of a scrap record.
type Source string

const (
	SourceApproval     Source = "approval"
	SourceManualDefect Source = "manual_defect"
)

// Record is one scrap entry.
type Record struct {
	ID          id.ID          `db:"id" json:"id"`
	ProductID   id.ID          `db:"product_id" json:"productId"`
	ProductName string         `db:"product_name" json:"productName"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Source      Source         `db:"source" json:"source"`

	ReportID    id.ID  `db:"report_id" json:"reportId"`
	StageID     id.ID  `db:"stage_id" json:"stageId"`
	StageTitle  string `db:"stage_title" json:"stageTitle"`
	OrderID     id.ID  `db:"order_id" json:"orderId"`
	OrderNumber string `db:"order_number" json:"orderNumber"`
	Note        string `db:"note" json:"note,omitempty"`

	Date      time.Time `db:"date" json:"date"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Validate implements entity.Validatable.
func (r *Record) Validate(ctx context.Context) error {
	if !r.Quantity.IsPositive() {
		return apperror.NewValidation("scrap quantity must be positive").
			WithDetail("field", "quantity")
	}
	if id.IsNil(r.ReportID) {
		return apperror.NewValidation("scrap record requires a report").
			WithDetail("field", "reportId")
	}
	if r.Source != SourceApproval && r.Source != SourceManualDefect {
		return apperror.NewValidation("unknown scrap source").
			WithDetail("field", "source")
	}
	r.Note = strings.TrimSpace(r.Note)
	return nil
}

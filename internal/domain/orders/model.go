// Package orders holds production orders: what product to make and how much.
// Orders are planning input; the ledger only reads them.
package orders

import (
	"context"
	"strings"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/entity"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
)

// Status of a production order.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Order is a production order for one finished product.
type Order struct {
	entity.BaseEntity
	entity.Timestamps

	Number      string         `db:"number" json:"number"`
	ProductID   id.ID          `db:"product_id" json:"productId"`
	ProductName string         `db:"product_name" json:"productName"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Deadline    *time.Time     `db:"deadline" json:"deadline,omitempty"`
	Status      Status         `db:"status" json:"status"`
}

// NewOrder creates a planned order.
func NewOrder(productID id.ID, productName string, quantity types.Quantity) *Order {
	return &Order{
		BaseEntity:  entity.NewBaseEntity(),
		Timestamps:  entity.NewTimestamps(),
		ProductID:   productID,
		ProductName: strings.TrimSpace(productName),
		Quantity:    quantity,
		Status:      StatusPlanned,
	}
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if id.IsNil(o.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if o.ProductName == "" {
		return apperror.NewValidation("product name is required").
			WithDetail("field", "productName")
	}
	if !o.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}
	switch o.Status {
	case StatusPlanned, StatusInProgress, StatusDone, StatusCancelled:
	default:
		return apperror.NewValidation("unknown order status").
			WithDetail("field", "status").
			WithDetail("value", o.Status)
	}
	return nil
}

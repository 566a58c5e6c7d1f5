// Package finishedgoods provides the finished-goods accumulation register:
// receipts from final-stage approvals and the resulting stock per product.
package finishedgoods

import (
	"time"

	"shopfloor/internal/core/entity"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
)

// Movement is one receipt into finished-goods stock. A report records at
// most one movement.
type Movement struct {
	entity.MovementBase

	ProductID   id.ID          `db:"product_id" json:"productId"`
	ProductName string         `db:"product_name" json:"productName"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
}

// Balance is the current stock of one product.
type Balance struct {
	ProductID   id.ID          `db:"product_id" json:"productId"`
	ProductName string         `db:"product_name" json:"productName"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`

	// MinQuantity is the reorder threshold. Rows created by receipts start at zero.
	MinQuantity types.Quantity `db:"min_quantity" json:"minQuantity"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// BelowMinimum reports whether stock fell under its threshold.
func (b *Balance) BelowMinimum() bool {
	return b.Quantity < b.MinQuantity
}

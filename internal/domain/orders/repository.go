package orders

import (
	"context"

	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
)

// Repository defines persistence for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)
	Delete(ctx context.Context, orderID id.ID) error
}

// ListFilter for orders.
type ListFilter struct {
	domain.ListFilter

	Status    *Status
	ProductID *id.ID
}

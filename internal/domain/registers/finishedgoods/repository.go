package finishedgoods

import (
	"context"

	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
)

// Repository defines operations for the finished-goods register.
type Repository interface {
	// CreateMovement appends a movement. A second movement for the same
	// recorder fails with DUPLICATE_ENTRY.
	CreateMovement(ctx context.Context, m *Movement) error

	// ApplyMovement adds m.Quantity to the product's balance, creating the
	// row when absent.
	ApplyMovement(ctx context.Context, m *Movement) error

	GetBalance(ctx context.Context, productID id.ID) (*Balance, error)
	ListBalances(ctx context.Context, filter BalanceFilter) (domain.ListResult[*Balance], error)
	ListMovements(ctx context.Context, productID id.ID) ([]*Movement, error)
}

// BalanceFilter for listing stock.
type BalanceFilter struct {
	domain.ListFilter

	ExcludeZero bool
	BelowMin    bool
}

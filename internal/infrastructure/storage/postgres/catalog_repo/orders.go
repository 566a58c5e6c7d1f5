// Package catalog_repo stores planning data: orders and their stages.
package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/orders"
	"shopfloor/internal/infrastructure/storage/postgres"
)

// OrderRepo implements orders.Repository.
type OrderRepo struct {
	base *postgres.BaseRepo[*orders.Order]
}

var _ orders.Repository = (*OrderRepo)(nil)

// NewOrderRepo creates an order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		base: postgres.NewBaseRepo[*orders.Order](txManager, "orders", "order", "created_at DESC",
			postgres.ExtractDBColumns[orders.Order]()),
	}
}

func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	return r.base.Create(ctx, o)
}

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	o := &orders.Order{}
	if err := r.base.GetByID(ctx, o, orderID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) List(ctx context.Context, f orders.ListFilter) (domain.ListResult[*orders.Order], error) {
	return r.base.List(ctx, r.filtered(f), f.ListFilter)
}

func (r *OrderRepo) filtered(f orders.ListFilter) squirrel.SelectBuilder {
	q := r.base.Select()
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	return q
}

func (r *OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	return r.base.Delete(ctx, orderID)
}

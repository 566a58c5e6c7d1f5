package memory

import (
	"context"
	"slices"
	"strings"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/orders"
)

// OrderRepo implements orders.Repository.
type OrderRepo struct{ s *Store }

var _ orders.Repository = OrderRepo{}

// Orders returns the order repository.
func (s *Store) Orders() OrderRepo { return OrderRepo{s} }

func (r OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	return r.s.view(ctx, func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return apperror.NewDuplicate("order", "id", o.ID.String())
		}
		for _, existing := range st.orders {
			if o.Number != "" && existing.Number == o.Number {
				return apperror.NewDuplicate("order", "number", o.Number)
			}
		}
		st.orders[o.ID] = cloneOrder(o)
		return nil
	})
}

func (r OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	var out *orders.Order
	err := r.s.view(ctx, func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return apperror.NewNotFound("order", orderID.String())
		}
		out = cloneOrder(o)
		return nil
	})
	return out, err
}

func (r OrderRepo) List(ctx context.Context, f orders.ListFilter) (domain.ListResult[*orders.Order], error) {
	var res domain.ListResult[*orders.Order]
	err := r.s.view(ctx, func(st *state) error {
		var items []*orders.Order
		for _, o := range st.orders {
			if f.Status != nil && o.Status != *f.Status {
				continue
			}
			if f.ProductID != nil && o.ProductID != *f.ProductID {
				continue
			}
			items = append(items, cloneOrder(o))
		}
		slices.SortFunc(items, func(a, b *orders.Order) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(b.Number, a.Number)
		})
		res = domain.Paginate(items, f.ListFilter)
		return nil
	})
	return res, err
}

// Delete removes the order and its stages, as the stages foreign key
// cascades in PostgreSQL. Reports are kept.
func (r OrderRepo) Delete(ctx context.Context, orderID id.ID) error {
	return r.s.view(ctx, func(st *state) error {
		if _, ok := st.orders[orderID]; !ok {
			return apperror.NewNotFound("order", orderID.String())
		}
		delete(st.orders, orderID)
		for stageID, stage := range st.stages {
			if stage.OrderID == orderID {
				delete(st.stages, stageID)
			}
		}
		return nil
	})
}

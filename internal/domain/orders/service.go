package orders

import (
	"context"
	"fmt"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/numerator"
	"shopfloor/internal/core/tx"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/audit"
	"shopfloor/pkg/logger"
)

// NumeratorStrategy for order numbers. Gaps are acceptable.
var NumeratorStrategy = numerator.StrategyCached

// PendingChecker reports whether an order still has reports awaiting a
// decision.
type PendingChecker interface {
	HasPending(ctx context.Context, orderID id.ID) (bool, error)
}

// Service provides operations on orders.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
	audit     audit.Recorder
	pending   PendingChecker
}

// NewService creates an order service. pending may be nil, in which case
// Delete does not look at the approval queue.
func NewService(repo Repository, gen numerator.Generator, txManager tx.Manager, rec audit.Recorder, pending PendingChecker) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{repo: repo, numerator: gen, txManager: txManager, audit: rec, pending: pending}
}

// Create validates and stores a new order.
func (s *Service) Create(ctx context.Context, order *Order) error {
	if err := order.Validate(ctx); err != nil {
		return err
	}

	if order.Number == "" {
		cfg := numerator.DefaultConfig(numerator.PrefixOrder)
		number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		order.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return s.audit.Record(ctx, audit.EntityOrder, order.ID, audit.ActionCreate, map[string]any{
			"number":   order.Number,
			"product":  order.ProductName,
			"quantity": order.Quantity.String(),
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "order created", "id", order.ID, "number", order.Number)
	return nil
}

// GetByID returns an order.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, domain.NormalizeNotFound(err, "order", orderID)
	}
	return o, nil
}

// List returns orders matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// Delete removes an order together with its stages. Reports keep their
// snapshot of both. An order with pending reports cannot be deleted: with
// the stage gone such a report could be neither approved nor rejected.
func (s *Service) Delete(ctx context.Context, orderID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if s.pending != nil {
			busy, err := s.pending.HasPending(ctx, orderID)
			if err != nil {
				return err
			}
			if busy {
				return apperror.NewBusinessRule(apperror.CodeBusinessRule, "Order has reports awaiting approval").
					WithDetail("order_id", orderID.String())
			}
		}
		if err := s.repo.Delete(ctx, orderID); err != nil {
			return domain.NormalizeNotFound(err, "order", orderID)
		}
		return s.audit.Record(ctx, audit.EntityOrder, orderID, audit.ActionDelete, nil)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "order deleted", "id", orderID)
	return nil
}

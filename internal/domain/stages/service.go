package stages

import (
	"context"
	"fmt"
	"slices"

	"shopfloor/internal/core/id"
	"shopfloor/internal/core/tx"
	"shopfloor/internal/domain"
	"shopfloor/internal/domain/audit"
	"shopfloor/internal/domain/orders"
	"shopfloor/pkg/logger"
)

// Service is the stage tracker.
type Service struct {
	repo      Repository
	orders    orders.Repository
	txManager tx.Manager
	audit     audit.Recorder
}

// NewService creates the stage tracker.
func NewService(repo Repository, orderRepo orders.Repository, txManager tx.Manager, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{repo: repo, orders: orderRepo, txManager: txManager, audit: rec}
}

// Create validates and stores a new stage.
func (s *Service) Create(ctx context.Context, stage *Stage) error {
	if err := stage.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.orders.GetByID(ctx, stage.OrderID); err != nil {
			return domain.NormalizeNotFound(err, "order", stage.OrderID)
		}
		if err := s.repo.Create(ctx, stage); err != nil {
			return fmt.Errorf("create stage: %w", err)
		}
		return s.audit.Record(ctx, audit.EntityStage, stage.ID, audit.ActionCreate, map[string]any{
			"title":   stage.Title,
			"planned": stage.Planned.String(),
			"final":   stage.IsFinalStage,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stage created", "id", stage.ID, "order_id", stage.OrderID, "title", stage.Title)
	return nil
}

// GetByID returns a stage.
func (s *Service) GetByID(ctx context.Context, stageID id.ID) (*Stage, error) {
	st, err := s.repo.GetByID(ctx, stageID)
	if err != nil {
		return nil, domain.NormalizeNotFound(err, "stage", stageID)
	}
	return st, nil
}

// ListByOrder returns the stages of an order. Archived stages are omitted
// unless includeArchived is set.
func (s *Service) ListByOrder(ctx context.Context, orderID id.ID, includeArchived bool) ([]*Stage, error) {
	list, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if includeArchived {
		return list, nil
	}
	return slices.DeleteFunc(list, (*Stage).IsArchived), nil
}

// Apply is the commit primitive for stage counters. Inside a transaction it
// locks the stage, runs t on a copy and writes the copy back with a version
// check. Nothing is written when t fails.
func (s *Service) Apply(ctx context.Context, stageID id.ID, t Transition) (*Stage, error) {
	var result *Stage

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, stageID)
		if err != nil {
			return domain.NormalizeNotFound(err, "stage", stageID)
		}

		next := *current
		if err := t(&next); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, &next); err != nil {
			return fmt.Errorf("update stage %s: %w", stageID, err)
		}
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Archive hides a stage from operative views. Counters and reports are kept.
func (s *Service) Archive(ctx context.Context, stageID id.ID) (*Stage, error) {
	var archived *Stage

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		st, err := s.Apply(ctx, stageID, Archive())
		if err != nil {
			return err
		}
		archived = st
		return s.audit.Record(ctx, audit.EntityStage, stageID, audit.ActionArchive, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stage archived", "id", stageID)
	return archived, nil
}

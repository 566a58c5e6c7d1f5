package scrap

import (
	"context"
	"fmt"
	"time"

	appctx "shopfloor/internal/core/context"
	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
	"shopfloor/pkg/logger"
)

// Service records and lists scrap. Transactions are owned by the caller.
type Service struct {
	repo Repository
}

// NewService creates a scrap ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record validates and stores r.
func (s *Service) Record(ctx context.Context, r *Record) error {
	if id.IsNil(r.ID) {
		r.ID = id.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Date.IsZero() {
		r.Date = r.CreatedAt
	}
	if r.CreatedBy == "" {
		r.CreatedBy = appctx.GetUserID(ctx)
	}
	if err := r.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return fmt.Errorf("create scrap record: %w", err)
	}

	logger.Info(ctx, "scrap recorded",
		"product_id", r.ProductID,
		"quantity", r.Quantity.String(),
		"source", r.Source,
		"report_id", r.ReportID,
	)
	return nil
}

// List returns scrap records.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Record], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

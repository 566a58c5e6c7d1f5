package finishedgoods

import (
	"context"
	"fmt"
	"time"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/entity"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain"
	"shopfloor/pkg/logger"
)

// RecorderApproval is the recorder type of movements posted by approvals.
const RecorderApproval = "production_report"

// Service provides operations on the finished-goods register.
// Transactions are owned by the caller (the approval engine).
type Service struct {
	repo Repository
}

// NewService creates a finished-goods register service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Receipt describes output of a final stage entering stock.
type Receipt struct {
	ReportID    id.ID
	ProductID   id.ID
	ProductName string
	Quantity    types.Quantity
	Period      time.Time
}

// Receive records the receipt and upserts the product's stock.
func (s *Service) Receive(ctx context.Context, rc Receipt) (*Movement, error) {
	if !rc.Quantity.IsPositive() {
		return nil, apperror.NewValidation("receipt quantity must be positive").
			WithDetail("report_id", rc.ReportID.String())
	}
	if id.IsNil(rc.ReportID) || id.IsNil(rc.ProductID) {
		return nil, apperror.NewValidation("receipt requires report and product")
	}

	m := &Movement{
		MovementBase: entity.NewMovementBase(rc.ReportID, RecorderApproval, rc.Period, entity.RecordTypeReceipt),
		ProductID:    rc.ProductID,
		ProductName:  rc.ProductName,
		Quantity:     rc.Quantity,
	}

	if err := s.repo.CreateMovement(ctx, m); err != nil {
		return nil, fmt.Errorf("create movement: %w", err)
	}
	if err := s.repo.ApplyMovement(ctx, m); err != nil {
		return nil, fmt.Errorf("apply movement: %w", err)
	}

	logger.Info(ctx, "finished goods received",
		"product_id", rc.ProductID,
		"quantity", rc.Quantity.String(),
		"recorder_id", rc.ReportID,
	)
	return m, nil
}

// GetBalance returns stock of a product. Unknown products have zero stock.
func (s *Service) GetBalance(ctx context.Context, productID id.ID) (*Balance, error) {
	b, err := s.repo.GetBalance(ctx, productID)
	if apperror.IsNotFound(err) {
		return &Balance{ProductID: productID}, nil
	}
	return b, err
}

// List returns stock rows.
func (s *Service) List(ctx context.Context, filter BalanceFilter) (domain.ListResult[*Balance], error) {
	filter.Normalize()
	return s.repo.ListBalances(ctx, filter)
}

// Movements returns receipts of a product, oldest first.
func (s *Service) Movements(ctx context.Context, productID id.ID) ([]*Movement, error) {
	return s.repo.ListMovements(ctx, productID)
}

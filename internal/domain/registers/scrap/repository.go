package scrap

import (
	"context"

	"shopfloor/internal/core/id"
	"shopfloor/internal/domain"
)

// Repository defines persistence for scrap records.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Record], error)
}

// ListFilter for scrap records.
type ListFilter struct {
	domain.ListFilter

	ProductID *id.ID
	StageID   *id.ID
	OrderID   *id.ID
	Source    *Source
}

// Matches applies the filter to r. Used by in-memory stores.
func (f ListFilter) Matches(r *Record) bool {
	switch {
	case f.ProductID != nil && r.ProductID != *f.ProductID:
		return false
	case f.StageID != nil && r.StageID != *f.StageID:
		return false
	case f.OrderID != nil && r.OrderID != *f.OrderID:
		return false
	case f.Source != nil && r.Source != *f.Source:
		return false
	}
	return true
}

package dto

import (
	"time"

	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
	"shopfloor/internal/domain/stages"
)

// CreateStageRequest adds a stage to an order.
type CreateStageRequest struct {
	Title        string                    `json:"title" binding:"required"`
	Kind         stages.Kind               `json:"kind,omitempty"`
	Planned      types.Quantity            `json:"planned"`
	IsFinalStage bool                      `json:"isFinalStage"`
	Inputs       []stages.InputRequirement `json:"inputs,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateStageRequest) ToEntity(orderID id.ID) *stages.Stage {
	kind := r.Kind
	if kind == "" {
		kind = stages.KindProduction
	}
	s := stages.NewStage(orderID, r.Title, kind, r.Planned)
	s.IsFinalStage = r.IsFinalStage
	s.Inputs = r.Inputs
	return s
}

// StageResponse is the API view of a stage and its counters.
type StageResponse struct {
	ID           string                    `json:"id"`
	OrderID      string                    `json:"orderId"`
	Title        string                    `json:"title"`
	Kind         stages.Kind               `json:"kind"`
	Planned      types.Quantity            `json:"planned"`
	Completed    types.Quantity            `json:"completed"`
	Pending      types.Quantity            `json:"pending"`
	Scrap        types.Quantity            `json:"scrap"`
	IsFinalStage bool                      `json:"isFinalStage"`
	Status       stages.Status             `json:"status"`
	Inputs       []stages.InputRequirement `json:"inputs"`
	Version      int                       `json:"version"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
}

// FromStage creates StageResponse from stages.Stage.
func FromStage(s *stages.Stage) StageResponse {
	inputs := s.Inputs
	if inputs == nil {
		inputs = []stages.InputRequirement{}
	}
	return StageResponse{
		ID:           s.ID.String(),
		OrderID:      s.OrderID.String(),
		Title:        s.Title,
		Kind:         s.Kind,
		Planned:      s.Planned,
		Completed:    s.Completed,
		Pending:      s.Pending,
		Scrap:        s.Scrap,
		IsFinalStage: s.IsFinalStage,
		Status:       s.Status,
		Inputs:       inputs,
		Version:      s.Version,
		UpdatedAt:    s.UpdatedAt,
	}
}

// FromStages maps a slice of stages.
func FromStages(list []*stages.Stage) []StageResponse {
	out := make([]StageResponse, 0, len(list))
	for _, s := range list {
		out = append(out, FromStage(s))
	}
	return out
}

// AllocationDraftRequest asks for candidate batches for a planned quantity.
type AllocationDraftRequest struct {
	Quantity types.Quantity `json:"quantity"`
}

// AdjustmentRequest posts a manual report to a stage.
type AdjustmentRequest struct {
	Kind      string         `json:"kind" binding:"required"`
	Quantity  types.Quantity `json:"quantity"`
	BatchCode string         `json:"batchCode,omitempty"`
	Note      string         `json:"note,omitempty"`
	Date      *time.Time     `json:"date,omitempty"`
}

// Package stages tracks production stages (tasks) of an order and their
// counters: planned, completed, pending and scrap.
package stages

import (
	"context"
	"strings"

	"shopfloor/internal/core/apperror"
	"shopfloor/internal/core/entity"
	"shopfloor/internal/core/id"
	"shopfloor/internal/core/types"
)

// Kind of stage.
type Kind string

const (
	// KindProduction stages report produced quantities.
	KindProduction Kind = "production"
	// KindSimple stages only record that work was done; zero quantity is allowed.
	KindSimple Kind = "simple"
)

// Status of a stage.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// InputRequirement declares that each unit produced by the stage consumes
// Ratio units of the output of the stage titled SourceStage.
type InputRequirement struct {
	SourceStage string      `json:"sourceStage"`
	Ratio       types.Ratio `json:"ratio"`
}

// Stage is one production task of an order.
type Stage struct {
	entity.BaseEntity
	entity.Timestamps

	OrderID id.ID  `db:"order_id" json:"orderId"`
	Title   string `db:"title" json:"title"`
	Kind    Kind   `db:"kind" json:"kind"`

	Planned   types.Quantity `db:"planned" json:"planned"`
	Completed types.Quantity `db:"completed" json:"completed"`
	Pending   types.Quantity `db:"pending" json:"pending"`
	Scrap     types.Quantity `db:"scrap" json:"scrap"`

	// IsFinalStage marks the stage whose approved output is finished goods.
	IsFinalStage bool   `db:"is_final_stage" json:"isFinalStage"`
	Status       Status `db:"status" json:"status"`

	Inputs []InputRequirement `db:"inputs" json:"inputs"`
}

// NewStage creates a stage in todo status.
func NewStage(orderID id.ID, title string, kind Kind, planned types.Quantity) *Stage {
	return &Stage{
		BaseEntity: entity.NewBaseEntity(),
		Timestamps: entity.NewTimestamps(),
		OrderID:    orderID,
		Title:      strings.TrimSpace(title),
		Kind:       kind,
		Planned:    planned,
		Status:     StatusTodo,
	}
}

// Validate implements entity.Validatable.
func (s *Stage) Validate(ctx context.Context) error {
	if id.IsNil(s.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}
	if s.Title == "" {
		return apperror.NewValidation("title is required").
			WithDetail("field", "title")
	}
	if s.Kind != KindProduction && s.Kind != KindSimple {
		return apperror.NewValidation("unknown stage kind").
			WithDetail("field", "kind").
			WithDetail("value", s.Kind)
	}
	if s.Planned.IsNegative() {
		return apperror.NewValidation("planned quantity cannot be negative").
			WithDetail("field", "planned")
	}
	for i, in := range s.Inputs {
		for _, prev := range s.Inputs[:i] {
			if SameTitle(prev.SourceStage, in.SourceStage) {
				return apperror.NewValidation("duplicate input source stage").
					WithDetail("field", "inputs").
					WithDetail("index", i)
			}
		}
		if strings.TrimSpace(in.SourceStage) == "" {
			return apperror.NewValidation("input source stage is required").
				WithDetail("field", "inputs").
				WithDetail("index", i)
		}
		if SameTitle(in.SourceStage, s.Title) {
			return apperror.NewValidation("stage cannot consume its own output").
				WithDetail("field", "inputs").
				WithDetail("index", i)
		}
		if !in.Ratio.IsPositive() {
			return apperror.NewValidation("input ratio must be positive").
				WithDetail("field", "inputs").
				WithDetail("index", i)
		}
	}
	return nil
}

// IsArchived reports whether the stage is hidden from operative views.
func (s *Stage) IsArchived() bool {
	return s.Status == StatusArchived
}

// HasInputs reports whether submissions must allocate source batches.
func (s *Stage) HasInputs() bool {
	return len(s.Inputs) > 0
}

// QuantityRequired reports whether a report on this stage needs a positive quantity.
func (s *Stage) QuantityRequired() bool {
	return s.Kind != KindSimple
}

// SameTitle compares stage titles the way requirements are matched:
// trimmed and case-insensitive.
func SameTitle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

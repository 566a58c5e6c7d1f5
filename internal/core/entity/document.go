package entity

import (
	"context"
	"time"

	"shopfloor/internal/core/apperror"
)

// Document is the base for business records that carry a number and a
// business date (production reports, orders).
type Document struct {
	BaseEntity
	Timestamps

	// Number is assigned by the numerator when empty.
	Number string `db:"number" json:"number"`

	// Date is the business date.
	Date time.Time `db:"date" json:"date"`

	CreatedBy string `db:"created_by" json:"createdBy,omitempty"`
}

// NewDocument creates a Document dated now.
func NewDocument() Document {
	ts := NewTimestamps()
	return Document{
		BaseEntity: NewBaseEntity(),
		Timestamps: ts,
		Date:       ts.CreatedAt,
	}
}

// Validate implements Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// Touch updates UpdatedAt and increments version.
func (d *Document) Touch() {
	d.UpdatedAt = time.Now().UTC()
	d.BaseEntity.Touch()
}

// GetNumber returns the document number.
func (d *Document) GetNumber() string {
	return d.Number
}

// SetNumber sets the document number.
func (d *Document) SetNumber(n string) {
	d.Number = n
}

// GetDate returns the business date.
func (d *Document) GetDate() time.Time {
	return d.Date
}

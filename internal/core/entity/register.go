package entity

import (
	"time"

	"shopfloor/internal/core/id"
)

// RecordType defines movement direction for accumulation registers.
type RecordType string

const (
	// RecordTypeReceipt increases balance.
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases balance.
	RecordTypeExpense RecordType = "expense"
)

// MovementBase contains common fields for all register movements.
// Movements are immutable: never updated, only appended.
type MovementBase struct {
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the report that produced this movement.
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType is the report kind (production, manual_stock, ...).
	RecorderType string `db:"recorder_type" json:"recorderType"`

	// Period is the business date of the movement.
	Period time.Time `db:"period" json:"period"`

	RecordType RecordType `db:"record_type" json:"recordType"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovementBase creates a movement base with a generated LineID.
func NewMovementBase(recorderID id.ID, recorderType string, period time.Time, recordType RecordType) MovementBase {
	return MovementBase{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		Period:       period,
		RecordType:   recordType,
		CreatedAt:    time.Now().UTC(),
	}
}

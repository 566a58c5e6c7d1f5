// Package entity provides the base types shared by ledger entities.
package entity

import (
	"context"
	"time"

	"shopfloor/internal/core/id"
)

// Validatable is implemented by entities that check their own invariants
// without touching storage.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity carries identity and the optimistic lock version.
type BaseEntity struct {
	ID id.ID `db:"id" json:"id"`

	// Version is incremented on every persisted change.
	Version int `db:"version" json:"version"`
}

// NewBaseEntity creates a BaseEntity with a fresh UUIDv7.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.New(),
		Version: 1,
	}
}

// Touch increments version.
func (b *BaseEntity) Touch() {
	b.Version++
}

// SetVersion updates the version number (used by repositories after sync).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

// GetVersion returns the current version.
func (b *BaseEntity) GetVersion() int {
	return b.Version
}

// GetID returns the entity ID.
func (b *BaseEntity) GetID() id.ID {
	return b.ID
}

// Timestamps holds audit timestamps.
type Timestamps struct {
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewTimestamps returns timestamps set to now (UTC).
func NewTimestamps() Timestamps {
	now := time.Now().UTC()
	return Timestamps{CreatedAt: now, UpdatedAt: now}
}

// SetUpdatedAt updates the updated_at timestamp (used by repositories).
func (t *Timestamps) SetUpdatedAt(at time.Time) {
	t.UpdatedAt = at
}
